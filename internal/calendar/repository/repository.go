package repository

import (
	"ema-backend/internal/calendar/domain"
	"time"
)

// EventRepository defines data access for extracted calendar events
type EventRepository interface {
	// Create stores a new event. It reports false when an event with the
	// same (title, date, time) already exists for the account.
	Create(event *domain.CalendarEvent) (bool, error)

	// FindByID returns nil when the event does not exist
	FindByID(id string) (*domain.CalendarEvent, error)

	// FindByIdentity finds the event sharing (title, date, time)
	FindByIdentity(accountID, identityKey string) (*domain.CalendarEvent, error)

	// FindByAccount lists events ordered by event date
	FindByAccount(accountID string) ([]*domain.CalendarEvent, error)

	// SourceEmailIDs returns the ids of emails events were extracted from
	SourceEmailIDs(accountID string) (map[string]bool, error)

	// SetAdded flips the added flag and records the remote id
	SetAdded(id string, added bool, remoteID string) error

	Delete(id string) error

	// DeleteBySources removes events extracted from the given emails.
	// Events already added to the calendar are kept.
	DeleteBySources(accountID string, sourceIDs []string) (int64, error)

	// DeleteCreatedBefore evicts events older than cutoff that were never
	// added to the calendar.
	DeleteCreatedBefore(cutoff time.Time) (int64, error)

	// AccountIDs lists accounts that have at least one event
	AccountIDs() ([]string, error)
}
