package usecase

import (
	"context"
	"time"

	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/mailmsg"
)

// MailService is the per-account mail collaborator.
type MailService interface {
	ListMessageIDs(ctx context.Context, filter emaildomain.Filter) ([]string, error)
	GetMessage(ctx context.Context, id string) (*emaildomain.Email, error)
	Send(ctx context.Context, raw []byte) (string, error)
}

// ContactsService is the per-account contacts collaborator.
type ContactsService interface {
	ListConnections(ctx context.Context) ([]emaildomain.Contact, error)
	Profile(ctx context.Context) (emaildomain.Contact, error)
}

// Connector builds adapters for an account from its stored credentials.
type Connector interface {
	Mail(ctx context.Context, accountID string) (MailService, error)
	Contacts(ctx context.Context, accountID string) (ContactsService, error)
}

// VectorIndex is the semantic email index.
type VectorIndex interface {
	UpsertEmail(ctx context.Context, accountID, emailID, from, subject, body string) error
	Rank(ctx context.Context, accountID, query string, limit int) ([]string, error)
}

// EventService pushes live updates to the extension.
type EventService interface {
	Send(key, event string, data interface{})
}

// SummaryResult is the outcome of a bulk summary request.
type SummaryResult struct {
	Summary string `json:"summary"`
	Cached  bool   `json:"cached"`
	// Basic is set when the AI call failed and the subject list was used.
	Basic bool `json:"basic,omitempty"`
}

type EmailUsecase interface {
	// FetchEmails lists and downloads inbox messages matching filter, stores
	// them and derives contacts. It returns registry.ErrCancelled when tok
	// is cancelled before results are written.
	FetchEmails(ctx context.Context, accountID string, filter emaildomain.Filter, tok registry.Token) ([]*emaildomain.Email, error)
	// CachedEmails reads stored emails, preferring the fast layer.
	CachedEmails(ctx context.Context, accountID string, filter emaildomain.Filter) ([]*emaildomain.Email, error)
	StoreEmails(ctx context.Context, accountID string, emails []*emaildomain.Email) error
	SendEmail(ctx context.Context, accountID string, msg mailmsg.Outgoing) (string, error)
	Profile(ctx context.Context, accountID string) (emaildomain.Contact, error)

	SearchContacts(ctx context.Context, accountID, query string) ([]emaildomain.Contact, error)
	ListContacts(ctx context.Context, accountID string) ([]emaildomain.Contact, error)
	SyncContacts(ctx context.Context, accountID string) (int, error)

	SummarizeEmails(ctx context.Context, accountID, sessionID string, emails []*emaildomain.Email, filter emaildomain.Filter, forceRegenerate bool, tok registry.Token) (*SummaryResult, error)
	SummarizeEmail(ctx context.Context, accountID, emailID string) (string, error)
	QueueSummaries(ctx context.Context, accountID string, emailIDs []string) (map[string]string, int, error)

	// RankForQuestion orders emails by relevance to question, most
	// relevant first.
	RankForQuestion(ctx context.Context, accountID, question string, emails []*emaildomain.Email) []*emaildomain.Email

	SweepExpired(ctx context.Context, now time.Time) (int64, error)

	SetAIService(svc ai.TextGenerator)
	SetSummaryWorker(w *SummaryWorkerService)
	SetVectorIndex(idx VectorIndex)
	Stop()
}
