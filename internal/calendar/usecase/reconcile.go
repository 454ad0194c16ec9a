package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"ema-backend/internal/calendar/domain"
	"ema-backend/internal/coordinator/registry"
	"ema-backend/pkg/dateutil"
	"ema-backend/pkg/gcal"

	"golang.org/x/sync/errgroup"
)

const syncConcurrency = 4

// dayWindow is [00:00, 24:00) of date in loc.
func dayWindow(date string, loc *time.Location) (time.Time, time.Time, bool) {
	day, err := time.ParseInLocation(dateutil.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return day, day.AddDate(0, 0, 1), true
}

// sameEvent matches by case-insensitive title and calendar day. Time of
// day is ignored.
func sameEvent(remote gcal.Event, ev *domain.CalendarEvent, loc *time.Location) bool {
	if !strings.EqualFold(strings.TrimSpace(remote.Title), strings.TrimSpace(ev.Title)) {
		return false
	}
	day, _, ok := dayWindow(ev.DateValue(), loc)
	return ok && dateutil.SameDay(remote.Start, day, loc)
}

func findMatch(remote []gcal.Event, ev *domain.CalendarEvent, loc *time.Location) *gcal.Event {
	for i := range remote {
		if sameEvent(remote[i], ev, loc) {
			return &remote[i]
		}
	}
	return nil
}

// findRemote looks up the remote event matching ev. Events without a
// usable date never match.
func findRemote(ctx context.Context, svc CalendarService, ev *domain.CalendarEvent) (*gcal.Event, error) {
	start, end, ok := dayWindow(ev.DateValue(), svc.Location())
	if !ok {
		return nil, nil
	}
	remote, err := svc.ListEvents(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return findMatch(remote, ev, svc.Location()), nil
}

func (u *eventsUsecase) VerifyEventInCalendar(ctx context.Context, accountID, eventID string) (bool, error) {
	ev, err := u.ownEvent(accountID, eventID)
	if err != nil {
		return false, err
	}

	var match *gcal.Event
	err = u.withCalendar(ctx, accountID, func(svc CalendarService) error {
		match, err = findRemote(ctx, svc, ev)
		return err
	})
	if err != nil {
		return false, err
	}

	exists := match != nil
	if !exists && ev.Added {
		u.log.Info().Str("event_id", ev.ID).Str("title", ev.Title).Msg("event marked added but missing remotely, resetting")
		if err := u.eventRepo.SetAdded(ev.ID, false, ""); err != nil {
			return false, err
		}
		if _, err := u.refresh(accountID); err != nil {
			u.log.Warn().Err(err).Msg("failed to refresh event cache")
		}
	}
	return exists, nil
}

func (u *eventsUsecase) SyncCalendarEvents(ctx context.Context, accountID string, tok registry.Token) (int, error) {
	events, err := u.eventRepo.FindByAccount(accountID)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	// One remote lookup per distinct day.
	var (
		mu     sync.Mutex
		byDay  = make(map[string][]gcal.Event)
		loc    *time.Location
		dates  []string
		seenOn = make(map[string]bool)
	)
	for _, ev := range events {
		if d := ev.DateValue(); d != "" && !seenOn[d] {
			seenOn[d] = true
			dates = append(dates, d)
		}
	}

	err = u.withCalendar(ctx, accountID, func(svc CalendarService) error {
		loc = svc.Location()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(syncConcurrency)
		for _, d := range dates {
			g.Go(func() error {
				if registry.Check(tok) != nil {
					return nil
				}
				start, end, ok := dayWindow(d, loc)
				if !ok {
					return nil
				}
				remote, err := svc.ListEvents(gctx, start, end)
				if err != nil {
					return err
				}
				mu.Lock()
				byDay[d] = remote
				mu.Unlock()
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return 0, err
	}
	if err := registry.Check(tok); err != nil {
		return 0, err
	}

	synced := 0
	for _, ev := range events {
		match := findMatch(byDay[ev.DateValue()], ev, loc)
		exists := match != nil
		if exists == ev.Added {
			continue
		}
		if err := registry.Check(tok); err != nil {
			return synced, err
		}
		remoteID := ""
		if exists {
			remoteID = match.ID
		}
		if err := u.eventRepo.SetAdded(ev.ID, exists, remoteID); err != nil {
			return synced, err
		}
		synced++
	}

	u.log.Info().Str("account_id", accountID).Int("synced", synced).Int("events", len(events)).Msg("calendar sync completed")
	if synced > 0 {
		if _, err := u.refresh(accountID); err != nil {
			u.log.Warn().Err(err).Msg("failed to refresh event cache")
		}
	}
	return synced, nil
}

func (u *eventsUsecase) AddToCalendar(ctx context.Context, accountID, eventID string) (*AddResult, error) {
	ev, err := u.ownEvent(accountID, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Date == nil {
		return nil, ErrMissingDate
	}

	result := &AddResult{}
	err = u.withCalendar(ctx, accountID, func(svc CalendarService) error {
		match, err := findRemote(ctx, svc, ev)
		if err != nil {
			return err
		}
		if match != nil {
			result.Exists, result.RemoteID = true, match.ID
			return nil
		}

		start, end, err := eventWindow(ev, svc.Location())
		if err != nil {
			return err
		}
		id, err := svc.CreateEvent(ctx, gcal.Event{
			Title:       ev.Title,
			Start:       start,
			End:         end,
			Location:    ev.Location,
			Description: ev.Description,
		})
		if err != nil {
			return err
		}
		result.RemoteID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := u.eventRepo.SetAdded(ev.ID, true, result.RemoteID); err != nil {
		return nil, err
	}
	ev.Added, ev.RemoteID = true, result.RemoteID
	result.Event = ev
	u.log.Info().Str("event_id", ev.ID).Str("title", ev.Title).Bool("exists", result.Exists).Msg("event added to calendar")

	if _, err := u.refresh(accountID); err != nil {
		u.log.Warn().Err(err).Msg("failed to refresh event cache")
	}
	return result, nil
}

func (u *eventsUsecase) RemoveFromCalendar(ctx context.Context, accountID, eventID string) (bool, error) {
	ev, err := u.ownEvent(accountID, eventID)
	if err != nil {
		return false, err
	}

	removed := false
	err = u.withCalendar(ctx, accountID, func(svc CalendarService) error {
		match, err := findRemote(ctx, svc, ev)
		if err != nil || match == nil {
			return err
		}
		if err := svc.DeleteEvent(ctx, match.ID); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if err := u.eventRepo.SetAdded(ev.ID, false, ""); err != nil {
		return removed, err
	}
	if _, err := u.refresh(accountID); err != nil {
		u.log.Warn().Err(err).Msg("failed to refresh event cache")
	}
	return removed, nil
}
