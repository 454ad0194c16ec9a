package domain

import (
	"strings"
	"time"
)

// Confidence marks how an event was extracted.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	// ConfidenceLow is used for events produced by the rule-based extractor.
	ConfidenceLow Confidence = "low"
)

// CalendarEvent is an event extracted from mail or chat. Its identity for
// deduplication is (title, date, time), stored in IdentityKey.
type CalendarEvent struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	AccountID     string     `json:"-" gorm:"uniqueIndex:idx_event_identity;index;not null"`
	IdentityKey   string     `json:"-" gorm:"uniqueIndex:idx_event_identity;size:191;not null"`
	Title         string     `json:"title" gorm:"not null"`
	Date          *string    `json:"date"`
	Time          *string    `json:"time"`
	Location      string     `json:"location,omitempty"`
	Description   string     `json:"description,omitempty"`
	Added         bool       `json:"added" gorm:"default:false"`
	SourceEmailID *string    `json:"sourceEmailId,omitempty" gorm:"index"`
	EventDate     time.Time  `json:"eventDate" gorm:"index"`
	Confidence    Confidence `json:"confidence,omitempty"`
	RemoteID      string     `json:"remoteId,omitempty"`
	CreatedAt     time.Time  `json:"timestamp"`
	UpdatedAt     time.Time  `json:"-"`
}

func (CalendarEvent) TableName() string {
	return "calendar_events"
}

// DateValue returns the ISO date or "".
func (e *CalendarEvent) DateValue() string {
	if e.Date == nil {
		return ""
	}
	return *e.Date
}

// TimeValue returns the extracted time or "".
func (e *CalendarEvent) TimeValue() string {
	if e.Time == nil {
		return ""
	}
	return *e.Time
}

// Identity computes the deduplication key for title, date and time.
func Identity(title, date, clock string) string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	return norm(title) + "|" + norm(date) + "|" + norm(clock)
}

// RefreshIdentity recomputes IdentityKey from the current fields.
func (e *CalendarEvent) RefreshIdentity() {
	e.IdentityKey = Identity(e.Title, e.DateValue(), e.TimeValue())
}

// StringPtr returns nil for "" so optional columns stay NULL.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
