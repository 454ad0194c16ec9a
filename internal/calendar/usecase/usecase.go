package usecase

import (
	"context"
	"errors"
	"time"

	"ema-backend/internal/calendar/domain"
	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/gcal"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrMissingDate   = errors.New("event has no date")
)

// CalendarService is the per-account remote calendar.
type CalendarService interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]gcal.Event, error)
	CreateEvent(ctx context.Context, ev gcal.Event) (string, error)
	DeleteEvent(ctx context.Context, id string) error
	Location() *time.Location
}

// Connector builds a calendar client for an account and can discard its
// cached access token.
type Connector interface {
	Calendar(ctx context.Context, accountID string) (CalendarService, error)
	ForceReauthenticate(ctx context.Context, accountID string) error
}

// EventService pushes live updates to the extension.
type EventService interface {
	Send(key, event string, data interface{})
}

// AddResult describes the outcome of AddToCalendar.
type AddResult struct {
	Event    *domain.CalendarEvent `json:"event"`
	RemoteID string                `json:"eventId,omitempty"`
	// Exists is set when a matching remote event was already present.
	Exists bool `json:"exists"`
}

// EventsUsecase defines calendar extraction and reconciliation
type EventsUsecase interface {
	// GetEvents returns the account's events, preferring the fast layer
	GetEvents(ctx context.Context, accountID string) ([]*domain.CalendarEvent, error)

	// ExtractCalendarEvents extracts events from emails not processed yet,
	// or from all of them when forceRefresh is set, and returns the full
	// event list.
	ExtractCalendarEvents(ctx context.Context, accountID string, emails []*emaildomain.Email, forceRefresh bool, tok registry.Token) ([]*domain.CalendarEvent, error)

	// SaveEvent stores an event built outside extraction. When an event
	// with the same identity exists it is returned instead.
	SaveEvent(ctx context.Context, accountID string, event *domain.CalendarEvent) (*domain.CalendarEvent, error)

	// VerifyEventInCalendar reports whether the event is present remotely
	VerifyEventInCalendar(ctx context.Context, accountID, eventID string) (bool, error)

	// SyncCalendarEvents reconciles every local event with the remote
	// calendar and returns how many were corrected.
	SyncCalendarEvents(ctx context.Context, accountID string, tok registry.Token) (int, error)

	// AddToCalendar inserts the event remotely unless it already exists
	AddToCalendar(ctx context.Context, accountID, eventID string) (*AddResult, error)

	// RemoveFromCalendar deletes the matching remote event; it reports
	// false when none was found.
	RemoveFromCalendar(ctx context.Context, accountID, eventID string) (bool, error)

	MarkEventAdded(ctx context.Context, accountID, eventID string, added bool) (*domain.CalendarEvent, error)
	DeleteEvent(ctx context.Context, accountID, eventID string) error

	SweepExpired(ctx context.Context, now time.Time) (int64, error)

	SetAIService(svc ai.TextGenerator)
	SetEventService(svc EventService)
}

// PermissionMessage is shown when calendar access fails after the single
// re-authentication attempt.
const PermissionMessage = "Calendar permission denied. Please reload the extension and grant calendar access."
