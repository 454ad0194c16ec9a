// Package gcal is the Calendar adapter over the Google Calendar v3 API.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const calendarID = "primary"

// ErrPermissionDenied means the token lacks calendar scope or was revoked.
var ErrPermissionDenied = errors.New("calendar permission denied")

// Event is the adapter's view of a remote calendar entry.
type Event struct {
	ID          string
	Title       string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Location    string
	Description string
}

type Service struct {
	srv *calendar.Service
	loc *time.Location
}

func NewService(ctx context.Context, ts oauth2.TokenSource, loc *time.Location) (*Service, error) {
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{srv: srv, loc: loc}, nil
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// ListEvents returns single (expanded) events overlapping [timeMin, timeMax).
func (s *Service) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	var out []Event
	pageToken := ""
	for {
		call := s.srv.Events.List(calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(250).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, classify(err)
		}
		for _, item := range resp.Items {
			if ev, ok := fromRemote(item, s.loc); ok {
				out = append(out, ev)
			}
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			return out, nil
		}
	}
}

// CreateEvent inserts a timed event and returns its remote id.
func (s *Service) CreateEvent(ctx context.Context, ev Event) (string, error) {
	remote := &calendar.Event{
		Summary:     ev.Title,
		Location:    ev.Location,
		Description: ev.Description,
		Start:       s.toRemoteTime(ev.Start),
		End:         s.toRemoteTime(ev.End),
	}
	created, err := s.srv.Events.Insert(calendarID, remote).Context(ctx).Do()
	if err != nil {
		return "", classify(err)
	}
	return created.Id, nil
}

func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	if err := s.srv.Events.Delete(calendarID, id).Context(ctx).Do(); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Service) toRemoteTime(t time.Time) *calendar.EventDateTime {
	dt := &calendar.EventDateTime{DateTime: t.In(s.loc).Format(time.RFC3339)}
	// "Local" is not an IANA name; the RFC 3339 offset carries the zone.
	if name := s.loc.String(); name != "Local" {
		dt.TimeZone = name
	}
	return dt
}

func fromRemote(item *calendar.Event, loc *time.Location) (Event, bool) {
	if item == nil || item.Start == nil {
		return Event{}, false
	}
	ev := Event{
		ID:          item.Id,
		Title:       item.Summary,
		Location:    item.Location,
		Description: item.Description,
	}
	start, allDay, ok := parseRemoteTime(item.Start, loc)
	if !ok {
		return Event{}, false
	}
	ev.Start, ev.AllDay = start, allDay
	if item.End != nil {
		ev.End, _, _ = parseRemoteTime(item.End, loc)
	}
	return ev, true
}

func parseRemoteTime(dt *calendar.EventDateTime, loc *time.Location) (time.Time, bool, bool) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false, false
		}
		return t.In(loc), false, true
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, true, true
	}
	return time.Time{}, false, false
}

// classify maps scope and permission failures onto ErrPermissionDenied.
func classify(err error) error {
	if IsPermissionError(err) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}

func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusForbidden {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission_denied") ||
		strings.Contains(msg, "insufficient authentication scopes") ||
		strings.Contains(msg, "insufficientpermissions")
}
