package notification

import (
	"context"
	"errors"
	"testing"

	authdomain "ema-backend/internal/auth/domain"
	calendardomain "ema-backend/internal/calendar/domain"
	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAccounts struct {
	byID map[string]*authdomain.Account
}

func (m *memAccounts) FindByEmail(email string) (*authdomain.Account, error) {
	for _, a := range m.byID {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAccounts) FindByID(id string) (*authdomain.Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) Update(account *authdomain.Account) error {
	cp := *account
	m.byID[account.ID] = &cp
	return nil
}

type countingMail struct{ fetches int }

func (m *countingMail) FetchEmails(ctx context.Context, accountID string, filter emaildomain.Filter, tok registry.Token) ([]*emaildomain.Email, error) {
	m.fetches++
	return []*emaildomain.Email{{ID: "new-1"}}, nil
}

type countingEvents struct{ extractions int }

func (e *countingEvents) ExtractCalendarEvents(ctx context.Context, accountID string, emails []*emaildomain.Email, force bool, tok registry.Token) ([]*calendardomain.CalendarEvent, error) {
	e.extractions++
	return nil, nil
}

type recordingPusher struct{ events []string }

func (p *recordingPusher) Send(key, event string, data interface{}) {
	p.events = append(p.events, key+":"+event)
}

type stubWatcher struct{ historyID uint64 }

func (w stubWatcher) Watch(ctx context.Context, topicName string) (uint64, error) {
	return w.historyID, nil
}

type fixture struct {
	svc      *Service
	accounts *memAccounts
	mail     *countingMail
	events   *countingEvents
	pusher   *recordingPusher
}

func newFixture() *fixture {
	f := &fixture{
		accounts: &memAccounts{byID: map[string]*authdomain.Account{
			"a1": {ID: "a1", Email: "me@x.com", HistoryID: 100},
		}},
		mail:   &countingMail{},
		events: &countingEvents{},
		pusher: &recordingPusher{},
	}
	watchers := func(ctx context.Context, accountID string) (Watcher, error) {
		if accountID != "a1" {
			return nil, errors.New("no mailbox")
		}
		return stubWatcher{historyID: 500}, nil
	}
	f.svc = newService(f.accounts, f.mail, f.events, f.pusher, watchers, zerolog.Nop())
	return f
}

func TestNotificationsDeduplicateByHistoryID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.HandleNotification(ctx, []byte(`{"emailAddress":"me@x.com","historyId":101}`)))
	require.NoError(t, f.svc.HandleNotification(ctx, []byte(`{"emailAddress":"me@x.com","historyId":101}`)))
	require.NoError(t, f.svc.HandleNotification(ctx, []byte(`{"emailAddress":"me@x.com","historyId":99}`)))

	assert.Equal(t, 1, f.mail.fetches)
	assert.Equal(t, 1, f.events.extractions)
	assert.Equal(t, []string{"a1:email_update"}, f.pusher.events)
	assert.Equal(t, uint64(101), f.accounts.byID["a1"].HistoryID)

	require.NoError(t, f.svc.HandleNotification(ctx, []byte(`{"emailAddress":"me@x.com","historyId":150}`)))
	assert.Equal(t, 2, f.mail.fetches)
}

func TestNotificationForUnknownAccount(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.svc.HandleNotification(context.Background(), []byte(`{"emailAddress":"who@x.com","historyId":1}`)))
	assert.Zero(t, f.mail.fetches)
}

func TestMalformedNotification(t *testing.T) {
	f := newFixture()
	assert.Error(t, f.svc.HandleNotification(context.Background(), []byte(`not json`)))
}

func TestWatchAccountRecordsHistoryID(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.svc.WatchAccount(context.Background(), "a1"))
	assert.Equal(t, uint64(500), f.accounts.byID["a1"].HistoryID)

	assert.Error(t, f.svc.WatchAccount(context.Background(), "zz"))
}
