package usecase

import (
	"context"
	"time"

	"ema-backend/internal/agent/domain"
	calendardomain "ema-backend/internal/calendar/domain"
	calendarusecase "ema-backend/internal/calendar/usecase"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/mailmsg"
)

// MailPort is the slice of the email usecase the agent talks to.
type MailPort interface {
	SendEmail(ctx context.Context, accountID string, msg mailmsg.Outgoing) (string, error)
	Profile(ctx context.Context, accountID string) (emaildomain.Contact, error)
	SearchContacts(ctx context.Context, accountID, query string) ([]emaildomain.Contact, error)
	ListContacts(ctx context.Context, accountID string) ([]emaildomain.Contact, error)
	RankForQuestion(ctx context.Context, accountID, question string, emails []*emaildomain.Email) []*emaildomain.Email
}

// CalendarPort is the slice of the calendar usecase the agent talks to.
type CalendarPort interface {
	SaveEvent(ctx context.Context, accountID string, ev *calendardomain.CalendarEvent) (*calendardomain.CalendarEvent, error)
	AddToCalendar(ctx context.Context, accountID, eventID string) (*calendarusecase.AddResult, error)
}

// Turn is one user message plus the context it arrived with.
type Turn struct {
	AccountID string
	SessionID string
	Message   string
	// Emails already loaded for the account; empty makes inbox questions
	// ask for a fetch.
	Emails []*emaildomain.Email
}

// Response is what the agent says back.
type Response struct {
	Reply             string                        `json:"reply"`
	Intent            Intent                        `json:"intent,omitempty"`
	NeedsConfirmation bool                          `json:"needsConfirmation,omitempty"`
	PendingEmail      *domain.PendingEmailDraft     `json:"pendingEmail,omitempty"`
	NeedsFetch        bool                          `json:"needsFetch,omitempty"`
	EventAdded        bool                          `json:"eventAdded,omitempty"`
	Event             *calendardomain.CalendarEvent `json:"event,omitempty"`
}

type AgentUsecase interface {
	// Respond runs one dialogue turn. Turns of the same session are
	// serialized.
	Respond(ctx context.Context, turn Turn) (*Response, error)
	Classify(ctx context.Context, text string) Classification
	History(ctx context.Context, sessionID string) ([]domain.ChatTurn, error)
	// ClearHistory drops the turns and any pending draft of the session.
	ClearHistory(ctx context.Context, sessionID string) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	SetAIService(svc ai.TextGenerator)
}
