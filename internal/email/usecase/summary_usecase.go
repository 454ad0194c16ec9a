package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cachedomain "ema-backend/internal/cache/domain"
	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/hash"
)

const summaryPrompt = `Create an extremely concise summary of these emails in 2-3 short sentences only.
Focus ONLY on the most critical information.
Maintain a conversational tone but prioritize brevity above all else.
The summary should fit in a small UI area without requiring scrolling.

Emails to summarize:
%s`

var summaryOptions = ai.GenerateOptions{Temperature: 0.2, MaxOutputTokens: 100, TopP: 0.8, TopK: 40}

func summaryFilterKey(sessionID string) string { return "summary-filter:" + sessionID }

// SummaryCacheKey is the content key for a set of emails.
func SummaryCacheKey(emails []*emaildomain.Email) string {
	items := make([]hash.Item, 0, len(emails))
	for _, e := range emails {
		items = append(items, hash.Item{ID: e.ID, Snippet: e.Snippet})
	}
	return "summary:" + hash.EmailSet(items)
}

// BasicSummary lists the count and first three subjects.
func BasicSummary(emails []*emaildomain.Email) string {
	if len(emails) == 0 {
		return "No emails to summarize."
	}
	subjects := make([]string, 0, 3)
	for _, e := range emails[:min(3, len(emails))] {
		s := e.Subject
		if s == "" {
			s = "Untitled"
		}
		subjects = append(subjects, s)
	}
	plural := ""
	if len(emails) > 1 {
		plural = "s"
	}
	return fmt.Sprintf("%d recent email%s including: %s", len(emails), plural, strings.Join(subjects, ", "))
}

func (u *emailUsecase) SummarizeEmails(ctx context.Context, accountID, sessionID string, emails []*emaildomain.Email, filter emaildomain.Filter, forceRegenerate bool, tok registry.Token) (*SummaryResult, error) {
	if len(emails) == 0 {
		return &SummaryResult{Summary: BasicSummary(nil), Basic: true}, nil
	}

	filterKey := filter.Key()
	if sessionID != "" {
		previous, ok := u.fast.GetString(summaryFilterKey(sessionID))
		if ok && previous != filterKey {
			u.log.Debug().Str("from", previous).Str("to", filterKey).Msg("filter changed, regenerating summary")
			forceRegenerate = true
		}
		u.fast.Put(summaryFilterKey(sessionID), filterKey)
	}

	key := SummaryCacheKey(emails)
	if !forceRegenerate {
		if cached, ok := u.lookupWithTimeout(ctx, key); ok {
			return &SummaryResult{Summary: cached, Cached: true}, nil
		}
	}

	if u.aiService == nil {
		return &SummaryResult{Summary: BasicSummary(emails), Basic: true}, nil
	}

	var content []string
	for _, e := range emails {
		content = append(content, e.Snippet)
	}
	summary, err := u.aiService.Generate(ctx, fmt.Sprintf(summaryPrompt, strings.Join(content, "\n\n")), summaryOptions)
	summary = strings.TrimSpace(summary)
	if err != nil || summary == "" {
		if err == nil {
			err = errors.New("empty summary")
		}
		u.log.Warn().Err(err).Str("account_id", accountID).Msg("falling back to basic summary")
		return &SummaryResult{Summary: BasicSummary(emails), Basic: true}, nil
	}

	if err := registry.Check(tok); err != nil {
		return nil, err
	}
	if err := u.cacheRepo.Put(ctx, cachedomain.FamilySummary, key, summary); err != nil {
		u.log.Warn().Err(err).Msg("failed to cache summary")
	}
	return &SummaryResult{Summary: summary}, nil
}

// lookupWithTimeout races the durable cache read against lookupTimeout. A
// slow or failing read is a miss.
func (u *emailUsecase) lookupWithTimeout(ctx context.Context, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, u.lookupTimeout)
	defer cancel()

	type result struct {
		value string
		ok    bool
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		v, ok, err := u.cacheRepo.Get(ctx, key)
		ch <- result{v, ok, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			u.log.Warn().Err(r.err).Msg("summary cache read failed")
			return "", false
		}
		return r.value, r.ok
	case <-ctx.Done():
		u.log.Warn().Err(ctx.Err()).Msg("summary cache read timed out")
		return "", false
	}
}

func (u *emailUsecase) SummarizeEmail(ctx context.Context, accountID, emailID string) (string, error) {
	existing, err := u.summaryRepo.GetSummary(accountID, emailID)
	if err != nil {
		return "", err
	}
	if existing != nil && u.now().Sub(existing.CreatedAt) <= cachedomain.EmailSummaryTTL {
		return existing.Summary, nil
	}

	email, err := u.emailRepo.FindByID(accountID, emailID)
	if err != nil {
		return "", err
	}
	if email == nil {
		mail, err := u.connector.Mail(ctx, accountID)
		if err != nil {
			return "", err
		}
		if email, err = mail.GetMessage(ctx, emailID); err != nil {
			return "", fmt.Errorf("email not found: %w", err)
		}
	}
	if u.aiService == nil {
		return "", ai.ErrNoProvider
	}

	summary, err := GenerateEmailSummary(ctx, u.aiService, email.Subject, email.Text())
	if err != nil {
		return "", err
	}
	if err := u.summaryRepo.SaveSummary(accountID, emailID, summary); err != nil {
		u.log.Warn().Err(err).Msg("failed to cache email summary")
	}
	return summary, nil
}

func (u *emailUsecase) QueueSummaries(ctx context.Context, accountID string, emailIDs []string) (map[string]string, int, error) {
	if u.summaryWorker == nil {
		return nil, 0, ai.ErrNoProvider
	}
	emails, err := u.emailRepo.GetByIDs(accountID, emailIDs)
	if err != nil {
		return nil, 0, err
	}
	return u.summaryWorker.QueueEmailsForSummary(accountID, emails)
}
