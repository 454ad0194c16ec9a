package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	cacherepo "ema-backend/internal/cache/repository"
	"ema-backend/internal/calendar/domain"
	"ema-backend/internal/calendar/repository"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/dateutil"
	"ema-backend/pkg/gcal"
	"ema-backend/pkg/kvcache"
	"ema-backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const eventTTL = 7 * 24 * time.Hour

func eventsKey(accountID string) string { return "events:" + accountID }

// eventsUsecase implements EventsUsecase
type eventsUsecase struct {
	eventRepo repository.EventRepository
	cacheRepo cacherepo.CacheRepository
	fast      *kvcache.Store
	connector Connector
	loc       *time.Location
	log       zerolog.Logger

	aiService ai.TextGenerator
	events    EventService
	now       func() time.Time
}

// NewEventsUsecase creates the calendar usecase. loc anchors extracted
// dates; remote calls use the calendar client's own location.
func NewEventsUsecase(
	eventRepo repository.EventRepository,
	cacheRepo cacherepo.CacheRepository,
	fast *kvcache.Store,
	connector Connector,
	loc *time.Location,
	log zerolog.Logger,
) EventsUsecase {
	if loc == nil {
		loc = time.Local
	}
	return &eventsUsecase{
		eventRepo: eventRepo,
		cacheRepo: cacheRepo,
		fast:      fast,
		connector: connector,
		loc:       loc,
		log:       logger.Component(log, "EventsUsecase"),
		now:       time.Now,
	}
}

func (u *eventsUsecase) SetAIService(svc ai.TextGenerator) {
	u.aiService = svc
}

func (u *eventsUsecase) SetEventService(svc EventService) {
	u.events = svc
}

func (u *eventsUsecase) GetEvents(ctx context.Context, accountID string) ([]*domain.CalendarEvent, error) {
	var events []*domain.CalendarEvent
	if u.fast.Get(eventsKey(accountID), &events) {
		return events, nil
	}
	events, err := u.eventRepo.FindByAccount(accountID)
	if err != nil {
		return nil, err
	}
	u.fast.Put(eventsKey(accountID), events)
	return events, nil
}

// refresh reloads the durable list into the fast layer and notifies the
// extension.
func (u *eventsUsecase) refresh(accountID string) ([]*domain.CalendarEvent, error) {
	events, err := u.eventRepo.FindByAccount(accountID)
	if err != nil {
		return nil, err
	}
	u.fast.Put(eventsKey(accountID), events)
	if u.events != nil {
		u.events.Send(accountID, "events_update", map[string]interface{}{"events": events})
	}
	return events, nil
}

func (u *eventsUsecase) ownEvent(accountID, eventID string) (*domain.CalendarEvent, error) {
	ev, err := u.eventRepo.FindByID(eventID)
	if err != nil {
		return nil, err
	}
	if ev == nil || ev.AccountID != accountID {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

func (u *eventsUsecase) SaveEvent(ctx context.Context, accountID string, event *domain.CalendarEvent) (*domain.CalendarEvent, error) {
	event.AccountID = accountID
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.EventDate.IsZero() {
		event.EventDate = eventDate(event, u.now(), u.loc)
	}
	created, err := u.eventRepo.Create(event)
	if err != nil {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}
	if !created {
		event.RefreshIdentity()
		existing, err := u.eventRepo.FindByIdentity(accountID, event.IdentityKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			event = existing
		}
	}
	if _, err := u.refresh(accountID); err != nil {
		u.log.Warn().Err(err).Msg("failed to refresh event cache")
	}
	return event, nil
}

func (u *eventsUsecase) MarkEventAdded(ctx context.Context, accountID, eventID string, added bool) (*domain.CalendarEvent, error) {
	ev, err := u.ownEvent(accountID, eventID)
	if err != nil {
		return nil, err
	}
	remoteID := ev.RemoteID
	if !added {
		remoteID = ""
	}
	if err := u.eventRepo.SetAdded(ev.ID, added, remoteID); err != nil {
		return nil, err
	}
	ev.Added, ev.RemoteID = added, remoteID
	if _, err := u.refresh(accountID); err != nil {
		u.log.Warn().Err(err).Msg("failed to refresh event cache")
	}
	return ev, nil
}

func (u *eventsUsecase) DeleteEvent(ctx context.Context, accountID, eventID string) error {
	ev, err := u.ownEvent(accountID, eventID)
	if err != nil {
		return err
	}
	if err := u.eventRepo.Delete(ev.ID); err != nil {
		return err
	}
	_, err = u.refresh(accountID)
	return err
}

// SweepExpired evicts stale events and reloads the fast layer of every
// account that had events, so swept rows are not served from it.
func (u *eventsUsecase) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	accounts, err := u.eventRepo.AccountIDs()
	if err != nil {
		return 0, err
	}
	n, err := u.eventRepo.DeleteCreatedBefore(now.Add(-eventTTL))
	if err != nil || n == 0 {
		return n, err
	}
	for _, accountID := range accounts {
		if _, err := u.refresh(accountID); err != nil {
			u.fast.Delete(eventsKey(accountID))
			u.log.Warn().Err(err).Str("account", accountID).Msg("failed to refresh event cache after sweep")
		}
	}
	return n, nil
}

// eventDate is the sort key: the event's start when it has a date, else
// fallback.
func eventDate(ev *domain.CalendarEvent, fallback time.Time, loc *time.Location) time.Time {
	if ev.Date == nil {
		return fallback
	}
	start, _, err := eventWindow(ev, loc)
	if err != nil {
		return fallback
	}
	return start
}

// eventWindow is the timed slot the event occupies: its extracted time,
// or 09:00, for one hour.
func eventWindow(ev *domain.CalendarEvent, loc *time.Location) (time.Time, time.Time, error) {
	if ev.Date == nil {
		return time.Time{}, time.Time{}, ErrMissingDate
	}
	const layout = dateutil.DateLayout + " 15:04:05"
	clock := dateutil.ClockTime(ev.TimeValue())
	start, err := time.ParseInLocation(layout, *ev.Date+" "+clock, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid event date %q: %w", *ev.Date, err)
	}
	end, err := time.ParseInLocation(layout, *ev.Date+" "+dateutil.EndClockTime(clock), loc)
	if err != nil || !end.After(start) {
		end = start.Add(time.Hour)
	}
	return start, end, nil
}

// withCalendar runs fn against the account's calendar. A permission error
// forces re-authentication and fn runs exactly once more.
func (u *eventsUsecase) withCalendar(ctx context.Context, accountID string, fn func(svc CalendarService) error) error {
	svc, err := u.connector.Calendar(ctx, accountID)
	if err != nil {
		return err
	}
	err = fn(svc)
	if !errors.Is(err, gcal.ErrPermissionDenied) {
		return err
	}

	u.log.Warn().Err(err).Str("account_id", accountID).Msg("calendar permission denied, forcing re-authentication")
	if rerr := u.connector.ForceReauthenticate(ctx, accountID); rerr != nil {
		return fmt.Errorf("%w: %v", gcal.ErrPermissionDenied, rerr)
	}
	svc, err = u.connector.Calendar(ctx, accountID)
	if err != nil {
		return err
	}
	return fn(svc)
}
