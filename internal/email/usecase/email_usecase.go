package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	cacherepo "ema-backend/internal/cache/repository"
	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/internal/email/repository"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/kvcache"
	"ema-backend/pkg/logger"
	"ema-backend/pkg/mailmsg"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	fetchConcurrency = 8
	emailTTL         = 7 * 24 * time.Hour
)

func emailsKey(accountID string) string  { return "emails:" + accountID }
func profileKey(accountID string) string { return "profile:" + accountID }

type emailUsecase struct {
	emailRepo       repository.EmailRepository
	contactRepo     repository.ContactRepository
	summaryRepo     repository.EmailSummaryRepository
	syncHistoryRepo repository.EmailSyncHistoryRepository
	cacheRepo       cacherepo.CacheRepository
	fast            *kvcache.Store
	connector       Connector
	log             zerolog.Logger

	aiService     ai.TextGenerator
	vectorIndex   VectorIndex
	summaryWorker *SummaryWorkerService
	indexer       *indexWorker
	lookupTimeout time.Duration
	now           func() time.Time
}

// NewEmailUsecase wires the email usecase. The AI service, vector index and
// summary worker are optional and set afterwards.
func NewEmailUsecase(
	emailRepo repository.EmailRepository,
	contactRepo repository.ContactRepository,
	summaryRepo repository.EmailSummaryRepository,
	syncHistoryRepo repository.EmailSyncHistoryRepository,
	cacheRepo cacherepo.CacheRepository,
	fast *kvcache.Store,
	connector Connector,
	lookupTimeout time.Duration,
	log zerolog.Logger,
) EmailUsecase {
	if lookupTimeout <= 0 {
		lookupTimeout = 2 * time.Second
	}
	return &emailUsecase{
		emailRepo:       emailRepo,
		contactRepo:     contactRepo,
		summaryRepo:     summaryRepo,
		syncHistoryRepo: syncHistoryRepo,
		cacheRepo:       cacheRepo,
		fast:            fast,
		connector:       connector,
		lookupTimeout:   lookupTimeout,
		log:             logger.Component(log, "EmailUsecase"),
		now:             time.Now,
	}
}

func (u *emailUsecase) SetAIService(svc ai.TextGenerator) {
	u.aiService = svc
}

func (u *emailUsecase) SetSummaryWorker(w *SummaryWorkerService) {
	u.summaryWorker = w
}

// SetVectorIndex enables semantic ranking and starts the indexing workers.
func (u *emailUsecase) SetVectorIndex(idx VectorIndex) {
	u.vectorIndex = idx
	if idx != nil && u.indexer == nil {
		u.indexer = newIndexWorker(idx, u.syncHistoryRepo, u.log)
		u.indexer.Start(2)
	}
}

// Stop drains background indexing.
func (u *emailUsecase) Stop() {
	if u.indexer != nil {
		u.indexer.Stop()
	}
}

func (u *emailUsecase) FetchEmails(ctx context.Context, accountID string, filter emaildomain.Filter, tok registry.Token) ([]*emaildomain.Email, error) {
	filter = filter.Normalize()
	mail, err := u.connector.Mail(ctx, accountID)
	if err != nil {
		return nil, err
	}

	ids, err := mail.ListMessageIDs(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := registry.Check(tok); err != nil {
		return nil, err
	}

	fetched := make([]*emaildomain.Email, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			if registry.Check(tok) != nil {
				return nil
			}
			email, err := mail.GetMessage(gctx, id)
			if err != nil {
				u.log.Warn().Err(err).Str("email_id", id).Msg("skipping message")
				return nil
			}
			fetched[i] = email
			return nil
		})
	}
	_ = g.Wait()

	if err := registry.Check(tok); err != nil {
		u.log.Warn().Err(err).Str("account_id", accountID).Msg("discarding fetched emails")
		return nil, err
	}

	now := u.now()
	emails := make([]*emaildomain.Email, 0, len(fetched))
	for _, e := range fetched {
		if e == nil {
			continue
		}
		e.AccountID = accountID
		e.FetchedAt = now
		emails = append(emails, e)
	}
	sortNewestFirst(emails)

	if err := u.StoreEmails(ctx, accountID, emails); err != nil {
		return nil, err
	}
	return emails, nil
}

func (u *emailUsecase) StoreEmails(ctx context.Context, accountID string, emails []*emaildomain.Email) error {
	if len(emails) == 0 {
		return nil
	}
	now := u.now()
	for _, e := range emails {
		e.AccountID = accountID
		if e.FetchedAt.IsZero() {
			e.FetchedAt = now
		}
	}
	if err := u.emailRepo.SaveEmails(emails); err != nil {
		return fmt.Errorf("failed to store emails: %w", err)
	}

	var merged []*emaildomain.Email
	u.fast.Get(emailsKey(accountID), &merged)
	u.fast.Put(emailsKey(accountID), mergeEmails(merged, emails, now.Add(-emailTTL)))

	if contacts := ExtractContacts(accountID, emails); len(contacts) > 0 {
		if err := u.contactRepo.Upsert(contacts); err != nil {
			u.log.Warn().Err(err).Msg("failed to store header contacts")
		}
	}

	if u.indexer != nil {
		for _, e := range emails {
			u.indexer.Queue(indexJob{AccountID: accountID, Email: e})
		}
	}
	return nil
}

func (u *emailUsecase) CachedEmails(ctx context.Context, accountID string, filter emaildomain.Filter) ([]*emaildomain.Email, error) {
	filter = filter.Normalize()
	since := filter.Since(u.now())

	cutoff := u.now().Add(-emailTTL)
	var emails []*emaildomain.Email
	if !u.fast.Get(emailsKey(accountID), &emails) {
		stored, err := u.emailRepo.ListRecent(accountID, since, filter.MaxResults())
		if err != nil {
			return nil, err
		}
		emails = stored
	}

	out := make([]*emaildomain.Email, 0, len(emails))
	for _, e := range emails {
		if e.FetchedAt.Before(cutoff) {
			continue
		}
		if !since.IsZero() && e.InternalDate.Before(since) {
			continue
		}
		if (filter.Read == emaildomain.ReadOnly && !e.IsRead) || (filter.Read == emaildomain.UnreadOnly && e.IsRead) {
			continue
		}
		out = append(out, e)
		if len(out) == filter.MaxResults() {
			break
		}
	}
	return out, nil
}

func (u *emailUsecase) SendEmail(ctx context.Context, accountID string, msg mailmsg.Outgoing) (string, error) {
	if msg.FromEmail == "" {
		profile, err := u.Profile(ctx, accountID)
		if err != nil {
			return "", err
		}
		msg.FromEmail, msg.FromName = profile.Email, profile.Name
	}
	raw, err := mailmsg.Build(msg)
	if err != nil {
		return "", err
	}
	mail, err := u.connector.Mail(ctx, accountID)
	if err != nil {
		return "", err
	}
	id, err := mail.Send(ctx, raw)
	if err != nil {
		return "", err
	}
	u.log.Info().Str("account_id", accountID).Str("message_id", id).Msg("email sent")
	return id, nil
}

func (u *emailUsecase) Profile(ctx context.Context, accountID string) (emaildomain.Contact, error) {
	var profile emaildomain.Contact
	if u.fast.Get(profileKey(accountID), &profile) && profile.Email != "" {
		return profile, nil
	}
	svc, err := u.connector.Contacts(ctx, accountID)
	if err != nil {
		return emaildomain.Contact{}, err
	}
	profile, err = svc.Profile(ctx)
	if err != nil {
		return emaildomain.Contact{}, fmt.Errorf("failed to resolve sender profile: %w", err)
	}
	u.fast.Put(profileKey(accountID), profile)
	return profile, nil
}

func (u *emailUsecase) SearchContacts(ctx context.Context, accountID, query string) ([]emaildomain.Contact, error) {
	byName, err := u.contactRepo.SearchByName(accountID, query)
	if err != nil {
		return nil, err
	}
	if len(byName) > 0 {
		return byName, nil
	}
	return u.contactRepo.SearchByEmail(accountID, query)
}

func (u *emailUsecase) ListContacts(ctx context.Context, accountID string) ([]emaildomain.Contact, error) {
	return u.contactRepo.List(accountID)
}

func (u *emailUsecase) SyncContacts(ctx context.Context, accountID string) (int, error) {
	svc, err := u.connector.Contacts(ctx, accountID)
	if err != nil {
		return 0, err
	}
	contacts, err := svc.ListConnections(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list connections: %w", err)
	}
	for i := range contacts {
		contacts[i].AccountID = accountID
		contacts[i].Source = emaildomain.ContactSourcePeople
	}
	if err := u.contactRepo.Upsert(contacts); err != nil {
		return 0, err
	}
	return len(contacts), nil
}

func (u *emailUsecase) RankForQuestion(ctx context.Context, accountID, question string, emails []*emaildomain.Email) []*emaildomain.Email {
	if u.vectorIndex == nil || len(emails) == 0 {
		return emails
	}
	ids, err := u.vectorIndex.Rank(ctx, accountID, question, 10)
	if err != nil {
		u.log.Warn().Err(err).Msg("semantic ranking failed, using recency order")
		return emails
	}
	return reorder(emails, ids)
}

func (u *emailUsecase) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-emailTTL)
	n, err := u.emailRepo.DeleteFetchedBefore(cutoff)
	if err != nil {
		return 0, err
	}
	m, err := u.summaryRepo.DeleteCreatedBefore(cutoff)
	if err != nil {
		return n, err
	}
	return n + m, nil
}

// reorder puts emails named in ids first, in that order, followed by the
// rest in their original order.
func reorder(emails []*emaildomain.Email, ids []string) []*emaildomain.Email {
	byID := make(map[string]*emaildomain.Email, len(emails))
	for _, e := range emails {
		byID[e.ID] = e
	}
	out := make([]*emaildomain.Email, 0, len(emails))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok && !seen[id] {
			out = append(out, e)
			seen[id] = true
		}
	}
	for _, e := range emails {
		if !seen[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

// mergeEmails overlays fresh on cached by id and keeps newest first.
// Cached entries fetched before cutoff are dropped.
func mergeEmails(cached, fresh []*emaildomain.Email, cutoff time.Time) []*emaildomain.Email {
	byID := make(map[string]*emaildomain.Email, len(cached)+len(fresh))
	for _, e := range cached {
		if e.FetchedAt.Before(cutoff) {
			continue
		}
		byID[e.ID] = e
	}
	for _, e := range fresh {
		byID[e.ID] = e
	}
	out := make([]*emaildomain.Email, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sortNewestFirst(out)
	if len(out) > 200 {
		out = out[:200]
	}
	return out
}

func sortNewestFirst(emails []*emaildomain.Email) {
	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].InternalDate.After(emails[j].InternalDate)
	})
}
