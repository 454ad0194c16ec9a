package usecase

import (
	"context"
	"time"

	agentdomain "ema-backend/internal/agent/domain"
	agentusecase "ema-backend/internal/agent/usecase"
	calendardomain "ema-backend/internal/calendar/domain"
	calendarusecase "ema-backend/internal/calendar/usecase"
	"ema-backend/internal/coordinator/dto"
	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"
	emailusecase "ema-backend/internal/email/usecase"
	"ema-backend/pkg/logger"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrBadRequest    = errors.New("invalid action parameters")
	// ErrCancelled is the registry's sentinel, re-exported for callers of
	// the coordinator.
	ErrCancelled = registry.ErrCancelled
)

// Caller identifies who sent an action.
type Caller struct {
	AccountID string
	SessionID string
}

type handlerFunc func(ctx context.Context, caller Caller, req dto.ActionRequest, tok registry.Token) (dto.Result, error)

// Coordinator routes UI actions to the email, calendar and agent usecases.
type Coordinator interface {
	Dispatch(ctx context.Context, caller Caller, req dto.ActionRequest) (dto.Result, error)
	Bootstrap(ctx context.Context, caller Caller, tok registry.Token) (dto.Result, error)
	// Sweep removes expired records from every store.
	Sweep(ctx context.Context) int64
	// SyncAll reconciles the calendar of every account.
	SyncAll(ctx context.Context) int
	Registry() *registry.Registry
}

// AccountLister enumerates the stored accounts.
type AccountLister interface {
	AccountIDs(ctx context.Context) ([]string, error)
}

// Sweeper is anything holding records with a lifetime.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type coordinator struct {
	registry *registry.Registry
	emails   emailusecase.EmailUsecase
	events   calendarusecase.EventsUsecase
	agent    agentusecase.AgentUsecase
	accounts AccountLister
	sweepers []Sweeper
	log      zerolog.Logger
	now      func() time.Time

	handlers map[string]handlerFunc
	// Actions that register in the request registry.
	tracked map[string]bool
}

func NewCoordinator(
	reg *registry.Registry,
	emails emailusecase.EmailUsecase,
	events calendarusecase.EventsUsecase,
	agent agentusecase.AgentUsecase,
	accounts AccountLister,
	extraSweepers []Sweeper,
	log zerolog.Logger,
) Coordinator {
	c := &coordinator{
		registry: reg,
		emails:   emails,
		events:   events,
		agent:    agent,
		accounts: accounts,
		sweepers: append([]Sweeper{emails, events, agent}, extraSweepers...),
		log:      logger.Component(log, "Coordinator"),
		now:      time.Now,
	}
	c.handlers = map[string]handlerFunc{
		"getEmails":          c.getEmails,
		"summarizeEmails":    c.summarizeEmails,
		"summarizeEmail":     c.summarizeEmail,
		"queueSummaries":     c.queueSummaries,
		"extractEvents":      c.extractEvents,
		"getEvents":          c.getEvents,
		"syncCalendarEvents": c.syncCalendarEvents,
		"addToCalendar":      c.addToCalendar,
		"removeFromCalendar": c.removeFromCalendar,
		"markEventAdded":     c.markEventAdded,
		"deleteEvent":        c.deleteEvent,
		"fetchContacts":      c.fetchContacts,
		"processMessage":     c.processMessage,
		"getHistory":         c.getHistory,
		"clearHistory":       c.clearHistory,
		"cancelRequest":      c.cancelRequest,
		"bootstrap":          c.bootstrapAction,
	}
	c.tracked = map[string]bool{
		"getEmails": true, "summarizeEmails": true, "extractEvents": true,
		"syncCalendarEvents": true, "bootstrap": true, "processMessage": true,
	}
	return c
}

func (c *coordinator) Registry() *registry.Registry {
	return c.registry
}

func (c *coordinator) Dispatch(ctx context.Context, caller Caller, req dto.ActionRequest) (dto.Result, error) {
	h, ok := c.handlers[req.Action]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAction, "%q", req.Action)
	}

	tok := registry.None
	if c.tracked[req.Action] {
		tok = c.registry.Register(req.RequestID, req.Action)
		defer c.registry.Release(req.RequestID, tok)
	}

	res, err := h(ctx, caller, req, tok)
	if errors.Is(err, ErrCancelled) || (err == nil && tok.Cancelled()) {
		c.log.Info().Str("action", req.Action).Str("request", req.RequestID).Msg("request cancelled, result discarded")
		return dto.Cancelled, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *coordinator) getEmails(ctx context.Context, caller Caller, req dto.ActionRequest, tok registry.Token) (dto.Result, error) {
	emails, err := c.emails.FetchEmails(ctx, caller.AccountID, req.Filter(), tok)
	if err != nil {
		return nil, err
	}
	events, err := c.events.ExtractCalendarEvents(ctx, caller.AccountID, emails, false, tok)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return nil, err
		}
		c.log.Warn().Err(err).Msg("event extraction after fetch failed")
		if events, err = c.events.GetEvents(ctx, caller.AccountID); err != nil {
			return nil, err
		}
	}
	return dto.Result{"emails": nonNilEmails(emails), "events": nonNilEvents(events)}, nil
}

func (c *coordinator) summarizeEmails(ctx context.Context, caller Caller, req dto.ActionRequest, tok registry.Token) (dto.Result, error) {
	filter := req.Filter()
	emails, err := c.emails.CachedEmails(ctx, caller.AccountID, filter)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		if emails, err = c.emails.FetchEmails(ctx, caller.AccountID, filter, tok); err != nil {
			return nil, err
		}
	}
	sum, err := c.emails.SummarizeEmails(ctx, caller.AccountID, caller.SessionID, emails, filter, req.ForceRegenerate, tok)
	if err != nil {
		return nil, err
	}
	return dto.Result{"summary": sum.Summary, "cached": sum.Cached, "basic": sum.Basic}, nil
}

func (c *coordinator) summarizeEmail(ctx context.Context, caller Caller, req dto.ActionRequest, _ registry.Token) (dto.Result, error) {
	if req.EmailID == "" {
		return nil, errors.Wrap(ErrBadRequest, "emailId is required")
	}
	summary, err := c.emails.SummarizeEmail(ctx, caller.AccountID, req.EmailID)
	if err != nil {
		return nil, err
	}
	return dto.Result{"emailId": req.EmailID, "summary": summary}, nil
}

func (c *coordinator) queueSummaries(ctx context.Context, caller Caller, req dto.ActionRequest, _ registry.Token) (dto.Result, error) {
	if len(req.EmailIDs) == 0 {
		return dto.Result{"summaries": map[string]string{}, "queued": 0}, nil
	}
	cached, queued, err := c.emails.QueueSummaries(ctx, caller.AccountID, req.EmailIDs)
	if err != nil {
		return nil, err
	}
	return dto.Result{"summaries": cached, "queued": queued}, nil
}

func (c *coordinator) extractEvents(ctx context.Context, caller Caller, req dto.ActionRequest, tok registry.Token) (dto.Result, error) {
	emails, err := c.emails.CachedEmails(ctx, caller.AccountID, req.Filter())
	if err != nil {
		return nil, err
	}
	events, err := c.events.ExtractCalendarEvents(ctx, caller.AccountID, emails, req.ForceRefresh, tok)
	if err != nil {
		return nil, err
	}
	return dto.Result{"events": nonNilEvents(events)}, nil
}

func (c *coordinator) getEvents(ctx context.Context, caller Caller, _ dto.ActionRequest, _ registry.Token) (dto.Result, error) {
	events, err := c.events.GetEvents(ctx, caller.AccountID)
	if err != nil {
		return nil, err
	}
	return dto.Result{"events": nonNilEvents(events)}, nil
}

func (c *coordinator) syncCalendarEvents(ctx context.Context, caller Caller, _ dto.ActionRequest, tok registry.Token) (dto.Result, error) {
	synced, err := c.events.SyncCalendarEvents(ctx, caller.AccountID, tok)
	if err != nil {
		return nil, err
	}
	events, err := c.events.GetEvents(ctx, caller.AccountID)
	if err != nil {
		return nil, err
	}
	return dto.Result{"synced": synced, "events": nonNilEvents(events)}, nil
}

// addToCalendar relies on the calendar usecase for the single
// re-authentication retry; a second permission failure surfaces as
// gcal.ErrPermissionDenied.
func (c *coordinator) addToCalendar(ctx context.Context, caller Caller, req dto.ActionRequest, _ registry.Token) (dto.Result, error) {
	if req.EventID == "" {
		return nil, errors.Wrap(ErrBadRequest, "eventId is required")
	}
	res, err := c.events.AddToCalendar(ctx, caller.AccountID, req.EventID)
	if err != nil {
		return nil, err
	}
	message := "Event added to calendar"
	if res.Exists {
		message = "Event already exists in calendar"
	}
	return dto.Result{
		"success": true,
		"eventId": res.RemoteID,
		"exists":  res.Exists,
		"event":   res.Event,
		"message": message,
	}, nil
}

func (c *coordinator) removeFromCalendar(ctx context.Context, caller Caller, req dto.ActionRequest, _ registry.Token) (dto.Result, error) {
	if req.EventID == "" {
		return nil, errors.Wrap(ErrBadRequest, "eventId is required")
	}
	removed, err := c.events.RemoveFromCalendar(ctx, caller.AccountID, req.EventID)
	if err != nil {
		return nil, err
	}
	return dto.Result{"success": true, "removed": removed}, nil
}

func (c *coordinator) markEventAdded(ctx context.Context, caller Caller, req dto.ActionRequest, _ registry.Token) (dto.Result, error) {
	if req.EventID == "" || req.Added == nil {
		return nil, errors.Wrap(ErrBadRequest, "eventId and added are required")
	}
	ev, err := c.events.MarkEventAdded(ctx, caller.AccountID, req.EventID, *req.Added)
	if err != nil {
		return nil, err
	}
	return dto.Result{"success": true, "event": ev}, nil
}

func (c *coordinator) deleteEvent(ctx context.Context, caller Caller, req dto.ActionRequest, _ registry.Token) (dto.Result, error) {
	if req.EventID == "" {
		return nil, errors.Wrap(ErrBadRequest, "eventId is required")
	}
	if err := c.events.DeleteEvent(ctx, caller.AccountID, req.EventID); err != nil {
		return nil, err
	}
	return dto.Result{"success": true}, nil
}

func (c *coordinator) fetchContacts(ctx context.Context, caller Caller, _ dto.ActionRequest, _ registry.Token) (dto.Result, error) {
	synced, err := c.emails.SyncContacts(ctx, caller.AccountID)
	if err != nil {
		c.log.Warn().Err(err).Msg("contacts sync failed, serving stored contacts")
	}
	contacts, err := c.emails.ListContacts(ctx, caller.AccountID)
	if err != nil {
		return nil, err
	}
	if contacts == nil {
		contacts = []emaildomain.Contact{}
	}
	return dto.Result{"synced": synced, "contacts": contacts}, nil
}

// processMessage runs one agent turn. When the agent needs the inbox it
// fetches once and retries the turn.
func (c *coordinator) processMessage(ctx context.Context, caller Caller, req dto.ActionRequest, tok registry.Token) (dto.Result, error) {
	if req.Message == "" {
		return nil, errors.Wrap(ErrBadRequest, "message is required")
	}
	turn := agentusecase.Turn{AccountID: caller.AccountID, SessionID: caller.SessionID, Message: req.Message}
	if req.Context != nil && len(req.Context.Emails) > 0 {
		turn.Emails = req.Context.Emails
	} else {
		cached, err := c.emails.CachedEmails(ctx, caller.AccountID, emaildomain.Filter{Time: emaildomain.TimeWeek, Read: emaildomain.ReadAll})
		if err != nil {
			c.log.Warn().Err(err).Msg("failed to load cached emails for chat")
		}
		turn.Emails = cached
	}

	resp, err := c.agent.Respond(ctx, turn)
	if err != nil {
		return nil, err
	}
	if resp.NeedsFetch {
		fetched, err := c.emails.FetchEmails(ctx, caller.AccountID, emaildomain.Filter{Time: emaildomain.TimeWeek, Read: emaildomain.ReadAll}, tok)
		if err != nil {
			return nil, errors.Wrap(err, "fetch emails for question")
		}
		turn.Emails = fetched
		if resp, err = c.agent.Respond(ctx, turn); err != nil {
			return nil, err
		}
	}
	return dto.Result{
		"reply":             resp.Reply,
		"intent":            resp.Intent,
		"needsConfirmation": resp.NeedsConfirmation,
		"pendingEmail":      resp.PendingEmail,
		"needsFetch":        resp.NeedsFetch,
		"eventAdded":        resp.EventAdded,
		"event":             resp.Event,
	}, nil
}

func (c *coordinator) getHistory(ctx context.Context, caller Caller, _ dto.ActionRequest, _ registry.Token) (dto.Result, error) {
	turns, err := c.agent.History(ctx, caller.SessionID)
	if err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []agentdomain.ChatTurn{}
	}
	return dto.Result{"history": turns}, nil
}

func (c *coordinator) clearHistory(ctx context.Context, caller Caller, _ dto.ActionRequest, _ registry.Token) (dto.Result, error) {
	if err := c.agent.ClearHistory(ctx, caller.SessionID); err != nil {
		return nil, err
	}
	return dto.Result{"success": true}, nil
}

func (c *coordinator) cancelRequest(_ context.Context, _ Caller, req dto.ActionRequest, _ registry.Token) (dto.Result, error) {
	if req.RequestID == "" {
		return nil, errors.Wrap(ErrBadRequest, "requestId is required")
	}
	return dto.Result{"success": c.registry.Cancel(req.RequestID)}, nil
}

func (c *coordinator) bootstrapAction(ctx context.Context, caller Caller, _ dto.ActionRequest, tok registry.Token) (dto.Result, error) {
	return c.Bootstrap(ctx, caller, tok)
}

func nonNilEmails(emails []*emaildomain.Email) []*emaildomain.Email {
	if emails == nil {
		return []*emaildomain.Email{}
	}
	return emails
}

func nonNilEvents(events []*calendardomain.CalendarEvent) []*calendardomain.CalendarEvent {
	if events == nil {
		return []*calendardomain.CalendarEvent{}
	}
	return events
}
