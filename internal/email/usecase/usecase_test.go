package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	cachedomain "ema-backend/internal/cache/domain"
	cacherepo "ema-backend/internal/cache/repository"
	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/internal/email/repository"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/database"
	"ema-backend/pkg/kvcache"
	"ema-backend/pkg/mailmsg"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMail struct {
	mu       sync.Mutex
	messages map[string]*emaildomain.Email
	sent     [][]byte
	onGet    func(id string)
}

func (f *fakeMail) ListMessageIDs(ctx context.Context, filter emaildomain.Filter) ([]string, error) {
	ids := make([]string, 0, len(f.messages))
	for id := range f.messages {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeMail) GetMessage(ctx context.Context, id string) (*emaildomain.Email, error) {
	if f.onGet != nil {
		f.onGet(id)
	}
	m, ok := f.messages[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMail) Send(ctx context.Context, raw []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, raw)
	return fmt.Sprintf("sent-%d", len(f.sent)), nil
}

type fakeContacts struct {
	connections []emaildomain.Contact
}

func (f fakeContacts) ListConnections(ctx context.Context) ([]emaildomain.Contact, error) {
	return f.connections, nil
}

func (f fakeContacts) Profile(ctx context.Context) (emaildomain.Contact, error) {
	return emaildomain.Contact{Email: "me@example.com", Name: "Me"}, nil
}

type fakeConnector struct {
	mail     *fakeMail
	contacts fakeContacts
}

func (c fakeConnector) Mail(ctx context.Context, accountID string) (MailService, error) {
	return c.mail, nil
}

func (c fakeConnector) Contacts(ctx context.Context, accountID string) (ContactsService, error) {
	return c.contacts, nil
}

type fakeGen struct {
	calls atomic.Int32
	reply string
	err   error
}

func (g *fakeGen) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	g.calls.Add(1)
	return g.reply, g.err
}

type fixture struct {
	uc       *emailUsecase
	mail     *fakeMail
	gen      *fakeGen
	contacts repository.ContactRepository
	emails   repository.EmailRepository
	cache    cacherepo.CacheRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewInMemory("email_uc_" + uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&emaildomain.Email{},
		&emaildomain.Contact{},
		&emaildomain.EmailSummary{},
		&emaildomain.EmailSyncHistory{},
		&cachedomain.CachedEntry{},
	))

	now := time.Now()
	mail := &fakeMail{messages: map[string]*emaildomain.Email{
		"m1": {ID: "m1", From: "Alice Smith <alice@x.com>", To: "me@example.com", Subject: "Lunch", Snippet: "lunch tomorrow?", InternalDate: now.Add(-time.Hour)},
		"m2": {ID: "m2", From: "bob@y.com", To: "Me <me@example.com>", Subject: "Report", Snippet: "report attached", InternalDate: now, IsRead: true},
	}}
	f := &fixture{
		mail:     mail,
		gen:      &fakeGen{reply: "You have lunch plans and a report."},
		contacts: repository.NewContactRepository(db),
		emails:   repository.NewEmailRepository(db),
		cache:    cacherepo.NewCacheRepository(db),
	}
	uc := NewEmailUsecase(
		f.emails,
		f.contacts,
		repository.NewEmailSummaryRepository(db),
		repository.NewEmailSyncHistoryRepository(db),
		f.cache,
		kvcache.New(16, time.Hour),
		fakeConnector{mail: mail, contacts: fakeContacts{connections: []emaildomain.Contact{{Email: "carol@z.com", Name: "Carol"}}}},
		time.Second,
		zerolog.Nop(),
	)
	uc.SetAIService(f.gen)
	f.uc = uc.(*emailUsecase)
	return f
}

func TestFetchEmailsStoresAndDerivesContacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	emails, err := f.uc.FetchEmails(ctx, "acc", emaildomain.Filter{}, registry.None)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "m2", emails[0].ID, "newest first")

	stored, err := f.emails.FindByID("acc", "m1")
	require.NoError(t, err)
	require.NotNil(t, stored)

	contacts, err := f.contacts.List("acc")
	require.NoError(t, err)
	emailsSeen := map[string]string{}
	for _, c := range contacts {
		emailsSeen[c.Email] = c.Name
	}
	assert.Equal(t, "Alice Smith", emailsSeen["alice@x.com"])
	assert.Contains(t, emailsSeen, "bob@y.com")
	assert.Equal(t, "Me", emailsSeen["me@example.com"])

	unread, err := f.uc.CachedEmails(ctx, "acc", emaildomain.Filter{Time: emaildomain.TimeWeek, Read: emaildomain.UnreadOnly})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "m1", unread[0].ID)
}

func TestFetchEmailsDiscardsCancelledResults(t *testing.T) {
	f := newFixture(t)
	reg := registry.New()
	tok := reg.Register("r1", "getEmails")
	f.mail.onGet = func(string) { reg.Cancel("r1") }

	_, err := f.uc.FetchEmails(context.Background(), "acc", emaildomain.Filter{}, tok)
	assert.ErrorIs(t, err, registry.ErrCancelled)

	stored, err := f.emails.ListRecent("acc", time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSummarizeEmailsUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emails, err := f.uc.FetchEmails(ctx, "acc", emaildomain.Filter{}, registry.None)
	require.NoError(t, err)

	first, err := f.uc.SummarizeEmails(ctx, "acc", "s1", emails, emaildomain.Filter{}, false, registry.None)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, f.gen.reply, first.Summary)

	second, err := f.uc.SummarizeEmails(ctx, "acc", "s1", emails, emaildomain.Filter{}, false, registry.None)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.EqualValues(t, 1, f.gen.calls.Load())

	forced, err := f.uc.SummarizeEmails(ctx, "acc", "s1", emails, emaildomain.Filter{}, true, registry.None)
	require.NoError(t, err)
	assert.False(t, forced.Cached)
	assert.EqualValues(t, 2, f.gen.calls.Load())
}

func TestSummarizeEmailsFilterChangeRegenerates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emails, err := f.uc.FetchEmails(ctx, "acc", emaildomain.Filter{}, registry.None)
	require.NoError(t, err)

	_, err = f.uc.SummarizeEmails(ctx, "acc", "s1", emails, emaildomain.Filter{Time: emaildomain.TimeWeek}, false, registry.None)
	require.NoError(t, err)
	res, err := f.uc.SummarizeEmails(ctx, "acc", "s1", emails, emaildomain.Filter{Time: emaildomain.TimeMonth}, false, registry.None)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.EqualValues(t, 2, f.gen.calls.Load())
}

func TestSummarizeEmailsFallsBackToBasic(t *testing.T) {
	f := newFixture(t)
	f.gen.err = errors.New("quota exceeded")
	emails := []*emaildomain.Email{
		{ID: "a", Subject: "One"}, {ID: "b", Subject: ""}, {ID: "c", Subject: "Three"}, {ID: "d", Subject: "Four"},
	}

	res, err := f.uc.SummarizeEmails(context.Background(), "acc", "", emails, emaildomain.Filter{}, false, registry.None)
	require.NoError(t, err)
	assert.True(t, res.Basic)
	assert.Equal(t, "4 recent emails including: One, Untitled, Three", res.Summary)

	_, ok, err := f.cache.Get(context.Background(), SummaryCacheKey(emails))
	require.NoError(t, err)
	assert.False(t, ok, "fallback summaries are not cached")
}

type slowCache struct{ cacherepo.CacheRepository }

func (slowCache) Get(ctx context.Context, hash string) (string, bool, error) {
	<-ctx.Done()
	return "stale", true, nil
}

func TestLookupTimeoutIsAMiss(t *testing.T) {
	f := newFixture(t)
	f.uc.cacheRepo = slowCache{f.cache}
	f.uc.lookupTimeout = 20 * time.Millisecond

	start := time.Now()
	_, ok := f.uc.lookupWithTimeout(context.Background(), "k")
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBasicSummary(t *testing.T) {
	assert.Equal(t, "No emails to summarize.", BasicSummary(nil))
	assert.Equal(t, "1 recent email including: Hi", BasicSummary([]*emaildomain.Email{{Subject: "Hi"}}))
}

func TestSendEmailUsesProfile(t *testing.T) {
	f := newFixture(t)
	id, err := f.uc.SendEmail(context.Background(), "acc", mailmsg.Outgoing{To: "alice@x.com", Subject: "Hi", Body: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "sent-1", id)
	require.Len(t, f.mail.sent, 1)
	assert.Contains(t, string(f.mail.sent[0]), "me@example.com")
	assert.Contains(t, string(f.mail.sent[0]), "alice@x.com")
}

func TestSyncContactsAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.uc.SyncContacts(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	found, err := f.uc.SearchContacts(ctx, "acc", "carol")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, emaildomain.ContactSourcePeople, found[0].Source)

	found, err = f.uc.SearchContacts(ctx, "acc", "z.com")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestSummarizeEmailCachesPerEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.FetchEmails(ctx, "acc", emaildomain.Filter{}, registry.None)
	require.NoError(t, err)

	s1, err := f.uc.SummarizeEmail(ctx, "acc", "m1")
	require.NoError(t, err)
	s2, err := f.uc.SummarizeEmail(ctx, "acc", "m1")
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.EqualValues(t, 1, f.gen.calls.Load())
}

type recordingEvents struct {
	ch chan map[string]interface{}
}

func (r recordingEvents) Send(key, event string, data interface{}) {
	r.ch <- data.(map[string]interface{})
}

func TestSummaryWorkerPushesUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.FetchEmails(ctx, "acc", emaildomain.Filter{}, registry.None)
	require.NoError(t, err)

	events := recordingEvents{ch: make(chan map[string]interface{}, 4)}
	w := NewSummaryWorkerService(f.uc.summaryRepo, f.gen, events, 1, zerolog.Nop())
	w.Start()
	defer w.Stop()
	f.uc.SetSummaryWorker(w)

	cached, queued, err := f.uc.QueueSummaries(ctx, "acc", []string{"m1"})
	require.NoError(t, err)
	assert.Empty(t, cached)
	assert.Equal(t, 1, queued)

	select {
	case ev := <-events.ch:
		assert.Equal(t, "m1", ev["email_id"])
		assert.Equal(t, f.gen.reply, ev["summary"])
	case <-time.After(5 * time.Second):
		t.Fatal("no summary_update event")
	}
}

func TestSweptEmailsLeaveTheFastLayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	all := emaildomain.Filter{Time: emaildomain.TimeAll, Read: emaildomain.ReadAll}

	_, err := f.uc.FetchEmails(ctx, "acc", all, registry.None)
	require.NoError(t, err)
	cached, err := f.uc.CachedEmails(ctx, "acc", all)
	require.NoError(t, err)
	require.Len(t, cached, 2)

	later := time.Now().Add(8 * 24 * time.Hour)
	f.uc.now = func() time.Time { return later }
	n, err := f.uc.SweepExpired(ctx, later)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	cached, err = f.uc.CachedEmails(ctx, "acc", all)
	require.NoError(t, err)
	assert.Empty(t, cached)

	// A later store does not carry the expired entries forward.
	require.NoError(t, f.uc.StoreEmails(ctx, "acc", []*emaildomain.Email{{ID: "m3", Subject: "New", InternalDate: later}}))
	cached, err = f.uc.CachedEmails(ctx, "acc", all)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "m3", cached[0].ID)
}

func TestMergeEmailsDropsExpired(t *testing.T) {
	now := time.Now()
	cached := []*emaildomain.Email{
		{ID: "old", FetchedAt: now.Add(-8 * 24 * time.Hour), InternalDate: now.Add(-time.Hour)},
		{ID: "kept", FetchedAt: now.Add(-time.Hour), InternalDate: now.Add(-2 * time.Hour)},
	}
	fresh := []*emaildomain.Email{{ID: "new", FetchedAt: now, InternalDate: now}}

	out := mergeEmails(cached, fresh, now.Add(-7*24*time.Hour))
	ids := []string{}
	for _, e := range out {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"new", "kept"}, ids)
}

func TestReorder(t *testing.T) {
	emails := []*emaildomain.Email{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	out := reorder(emails, []string{"c", "x", "a"})
	ids := []string{}
	for _, e := range out {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestParseAddresses(t *testing.T) {
	got := ParseAddresses(`"Smith, Alice" <Alice@X.com>, bob@y.com`)
	require.Len(t, got, 2)
	assert.Equal(t, emaildomain.Contact{Email: "alice@x.com", Name: "Smith, Alice"}, got[0])
	assert.Equal(t, "bob@y.com", got[1].Email)

	got = ParseAddresses("Undisclosed recipients:;, Carol <carol@z.com")
	for _, c := range got {
		assert.Contains(t, c.Email, "@")
	}
	assert.Empty(t, ParseAddresses("not an address"))
	assert.Equal(t, "bob", DisplayName(emaildomain.Contact{Email: "bob@y.com"}))
}
