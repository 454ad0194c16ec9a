package domain

import "time"

// State is where a chat session is in the dialogue.
type State string

const (
	StateIdle                      State = "idle"
	StateAwaitingEmailConfirmation State = "awaiting_email_confirmation"
	StateAwaitingEventDetails      State = "awaiting_event_details"
)

// MaxHistory bounds the stored conversation per session.
const MaxHistory = 10

// PendingEmailDraft is an unsent email waiting for yes/no or an edit.
type PendingEmailDraft struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	FromName  string `json:"fromName,omitempty"`
	FromEmail string `json:"fromEmail,omitempty"`
}

// PendingEvent is an event from chat that still needs a date.
type PendingEvent struct {
	Title       string `json:"title"`
	Time        string `json:"time,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// SessionState is the per-session dialogue state, loaded at the start of
// a turn and saved at its end.
type SessionState struct {
	SessionID    string             `json:"sessionId" gorm:"primaryKey"`
	AccountID    string             `json:"-" gorm:"index;not null"`
	State        State              `json:"state" gorm:"size:48;not null;default:idle"`
	Draft        *PendingEmailDraft `json:"pendingEmail,omitempty" gorm:"serializer:json"`
	PendingEvent *PendingEvent      `json:"pendingEvent,omitempty" gorm:"serializer:json"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func (SessionState) TableName() string {
	return "session_states"
}

// Reset returns the session to Idle and drops pending work.
func (s *SessionState) Reset() {
	s.State = StateIdle
	s.Draft = nil
	s.PendingEvent = nil
}

// ChatTurn is one user message and the agent's reply.
type ChatTurn struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	SessionID string    `json:"-" gorm:"index;not null"`
	AccountID string    `json:"-" gorm:"index"`
	UserText  string    `json:"user" gorm:"type:text"`
	AgentText string    `json:"agent" gorm:"type:text"`
	CreatedAt time.Time `json:"timestamp" gorm:"index"`
}

func (ChatTurn) TableName() string {
	return "chat_turns"
}
