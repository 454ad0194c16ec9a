package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	agentusecase "ema-backend/internal/agent/usecase"
	calendardomain "ema-backend/internal/calendar/domain"
	calendarusecase "ema-backend/internal/calendar/usecase"
	"ema-backend/internal/coordinator/dto"
	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"
	emailusecase "ema-backend/internal/email/usecase"
	"ema-backend/pkg/gcal"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callLog struct {
	calls []string
}

func (l *callLog) add(name string) { l.calls = append(l.calls, name) }

type fakeEmails struct {
	emailusecase.EmailUsecase
	log        *callLog
	cached     []*emaildomain.Email
	fetched    []*emaildomain.Email
	fetchCalls int
	onFetch    func()
}

func (f *fakeEmails) FetchEmails(ctx context.Context, accountID string, filter emaildomain.Filter, tok registry.Token) ([]*emaildomain.Email, error) {
	f.log.add("fetch")
	f.fetchCalls++
	if f.onFetch != nil {
		f.onFetch()
	}
	if err := registry.Check(tok); err != nil {
		return nil, err
	}
	return f.fetched, nil
}

func (f *fakeEmails) CachedEmails(ctx context.Context, accountID string, filter emaildomain.Filter) ([]*emaildomain.Email, error) {
	return f.cached, nil
}

func (f *fakeEmails) SummarizeEmails(ctx context.Context, accountID, sessionID string, emails []*emaildomain.Email, filter emaildomain.Filter, force bool, tok registry.Token) (*emailusecase.SummaryResult, error) {
	f.log.add("summarize")
	return &emailusecase.SummaryResult{Summary: fmt.Sprintf("%d emails", len(emails))}, nil
}

func (f *fakeEmails) SyncContacts(ctx context.Context, accountID string) (int, error) {
	f.log.add("contacts")
	return 2, nil
}

func (f *fakeEmails) ListContacts(ctx context.Context, accountID string) ([]emaildomain.Contact, error) {
	return nil, nil
}

func (f *fakeEmails) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	f.log.add("sweep")
	return 1, nil
}

type fakeEvents struct {
	calendarusecase.EventsUsecase
	log       *callLog
	addErr    error
	syncCalls []string
}

func (f *fakeEvents) ExtractCalendarEvents(ctx context.Context, accountID string, emails []*emaildomain.Email, force bool, tok registry.Token) ([]*calendardomain.CalendarEvent, error) {
	f.log.add("extract")
	if err := registry.Check(tok); err != nil {
		return nil, err
	}
	return []*calendardomain.CalendarEvent{{ID: "e1", Title: "Standup"}}, nil
}

func (f *fakeEvents) GetEvents(ctx context.Context, accountID string) ([]*calendardomain.CalendarEvent, error) {
	return nil, nil
}

func (f *fakeEvents) SyncCalendarEvents(ctx context.Context, accountID string, tok registry.Token) (int, error) {
	f.syncCalls = append(f.syncCalls, accountID)
	return 2, nil
}

func (f *fakeEvents) AddToCalendar(ctx context.Context, accountID, eventID string) (*calendarusecase.AddResult, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &calendarusecase.AddResult{Event: &calendardomain.CalendarEvent{ID: eventID, Added: true}, RemoteID: "r-" + eventID}, nil
}

func (f *fakeEvents) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	f.log.add("sweep")
	return 0, nil
}

type fakeAgent struct {
	agentusecase.AgentUsecase
	turns []agentusecase.Turn
}

func (f *fakeAgent) Respond(ctx context.Context, turn agentusecase.Turn) (*agentusecase.Response, error) {
	f.turns = append(f.turns, turn)
	if len(turn.Emails) == 0 {
		return &agentusecase.Response{Reply: "need emails", NeedsFetch: true}, nil
	}
	return &agentusecase.Response{Reply: fmt.Sprintf("answered from %d emails", len(turn.Emails)), Intent: agentusecase.IntentEmailQuestion}, nil
}

func (f *fakeAgent) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type staticAccounts []string

func (s staticAccounts) AccountIDs(ctx context.Context) ([]string, error) { return s, nil }

type fixture struct {
	coord  Coordinator
	reg    *registry.Registry
	log    *callLog
	emails *fakeEmails
	events *fakeEvents
	agent  *fakeAgent
}

func newFixture() *fixture {
	log := &callLog{}
	f := &fixture{
		reg:    registry.New(),
		log:    log,
		emails: &fakeEmails{log: log},
		events: &fakeEvents{log: log},
		agent:  &fakeAgent{},
	}
	f.coord = NewCoordinator(f.reg, f.emails, f.events, f.agent, staticAccounts{"a1", "a2"}, nil, zerolog.Nop())
	return f
}

var caller = Caller{AccountID: "a1", SessionID: "s1"}

func TestUnknownAction(t *testing.T) {
	f := newFixture()
	_, err := f.coord.Dispatch(context.Background(), caller, dto.ActionRequest{Action: "launchRockets"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestProcessMessageRetriesAfterFetch(t *testing.T) {
	f := newFixture()
	f.emails.fetched = []*emaildomain.Email{{ID: "m1"}, {ID: "m2"}}

	res, err := f.coord.Dispatch(context.Background(), caller, dto.ActionRequest{Action: "processMessage", Message: "any unread mail?"})
	require.NoError(t, err)

	assert.Equal(t, "answered from 2 emails", res["reply"])
	assert.Equal(t, 1, f.emails.fetchCalls)
	require.Len(t, f.agent.turns, 2)
	assert.Empty(t, f.agent.turns[0].Emails)
	assert.Len(t, f.agent.turns[1].Emails, 2)
}

func TestProcessMessageRetriesOnlyOnce(t *testing.T) {
	f := newFixture()

	res, err := f.coord.Dispatch(context.Background(), caller, dto.ActionRequest{Action: "processMessage", Message: "any unread mail?"})
	require.NoError(t, err)

	assert.Equal(t, true, res["needsFetch"])
	assert.Equal(t, 1, f.emails.fetchCalls)
	assert.Len(t, f.agent.turns, 2)
}

func TestProcessMessageUsesProvidedContext(t *testing.T) {
	f := newFixture()

	res, err := f.coord.Dispatch(context.Background(), caller, dto.ActionRequest{
		Action:  "processMessage",
		Message: "what did Bob say?",
		Context: &dto.MessageContext{Emails: []*emaildomain.Email{{ID: "m9"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "answered from 1 emails", res["reply"])
	assert.Zero(t, f.emails.fetchCalls)
}

func TestCancelledFetchDiscardsResult(t *testing.T) {
	f := newFixture()
	f.emails.fetched = []*emaildomain.Email{{ID: "m1"}}
	f.emails.onFetch = func() { f.reg.Cancel("req-1") }

	res, err := f.coord.Dispatch(context.Background(), caller, dto.ActionRequest{Action: "getEmails", RequestID: "req-1"})
	require.NoError(t, err)

	assert.Equal(t, dto.Cancelled, res)
	assert.NotContains(t, f.log.calls, "extract")
	assert.Empty(t, f.reg.Active())
}

func TestCancelRequestAction(t *testing.T) {
	f := newFixture()
	tok := f.reg.Register("req-2", "syncCalendarEvents")

	res, err := f.coord.Dispatch(context.Background(), caller, dto.ActionRequest{Action: "cancelRequest", RequestID: "req-2"})
	require.NoError(t, err)
	assert.Equal(t, true, res["success"])
	assert.True(t, tok.Cancelled())

	res, err = f.coord.Dispatch(context.Background(), caller, dto.ActionRequest{Action: "cancelRequest", RequestID: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, false, res["success"])
}

func TestGetEmailsReturnsEmailsAndEvents(t *testing.T) {
	f := newFixture()
	f.emails.fetched = []*emaildomain.Email{{ID: "m1"}}

	res, err := f.coord.Dispatch(context.Background(), caller, dto.ActionRequest{Action: "getEmails", RequestID: "req-3", TimeFilter: emaildomain.TimeMonth})
	require.NoError(t, err)
	assert.Len(t, res["emails"], 1)
	assert.Len(t, res["events"], 1)
	assert.Equal(t, []string{"fetch", "extract"}, f.log.calls)
}

func TestBootstrapOrder(t *testing.T) {
	f := newFixture()
	f.emails.fetched = []*emaildomain.Email{{ID: "m1"}}

	res, err := f.coord.Dispatch(context.Background(), caller, dto.ActionRequest{Action: "bootstrap"})
	require.NoError(t, err)

	assert.Equal(t, []string{"sweep", "sweep", "fetch", "contacts", "summarize", "extract"}, f.log.calls)
	assert.Equal(t, "1 emails", res["summary"])
	assert.Equal(t, int64(1), res["swept"])
}

func TestAddToCalendarPermissionError(t *testing.T) {
	f := newFixture()
	f.events.addErr = fmt.Errorf("%w: still denied", gcal.ErrPermissionDenied)

	_, err := f.coord.Dispatch(context.Background(), caller, dto.ActionRequest{Action: "addToCalendar", EventID: "e1"})
	assert.ErrorIs(t, err, gcal.ErrPermissionDenied)

	f.events.addErr = nil
	res, err := f.coord.Dispatch(context.Background(), caller, dto.ActionRequest{Action: "addToCalendar", EventID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, "r-e1", res["eventId"])
	assert.Equal(t, false, res["exists"])
}

func TestParameterValidation(t *testing.T) {
	f := newFixture()
	for _, req := range []dto.ActionRequest{
		{Action: "markEventAdded", EventID: "e1"},
		{Action: "addToCalendar"},
		{Action: "processMessage"},
		{Action: "cancelRequest"},
	} {
		_, err := f.coord.Dispatch(context.Background(), caller, req)
		assert.ErrorIs(t, err, ErrBadRequest, req.Action)
	}
}

func TestSyncAllCoversEveryAccount(t *testing.T) {
	f := newFixture()
	assert.Equal(t, 4, f.coord.SyncAll(context.Background()))
	assert.Equal(t, []string{"a1", "a2"}, f.events.syncCalls)
}
