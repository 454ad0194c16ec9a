package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	cachedomain "ema-backend/internal/cache/domain"
	"ema-backend/internal/calendar/domain"
	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/dateutil"
	"ema-backend/pkg/hash"
	"ema-backend/pkg/llmparse"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	extractConcurrency = 4
	maxPromptContent   = 8000
)

var extractOptions = ai.GenerateOptions{Temperature: 0.1, TopP: 0.8, TopK: 40, MaxOutputTokens: 1024}

const extractPrompt = `Extract all dates, times, and events from this email.
For each event, please provide:
1. Title of the event (add with who if meeting)
2. Date (in YYYY-MM-DD format). If the year is not mentioned, set it to %d
3. Time (if available)
4. Location (if available)
5. A brief description

Format the output as a JSON array with objects containing these fields:
[{
  "title": "Event title",
  "date": "YYYY-MM-DD",
  "time": "HH:MM AM/PM",
  "location": "Location",
  "description": "Brief description of the event"
}]

IMPORTANT: This email was sent on %s.
Handle relative dates using this as the reference date:
- "tomorrow" should be %s
- "today" should be %s
- For days of the week like "next Monday" or "this Tuesday", use the next occurrence relative to %s

Only extract real events with actual dates. Include requests for events. Ignore past events.
IMPORTANT: Do not include promotions, discount offers, discount expirations, deal expirations, or marketing campaigns. Do not extract any expiration dates related to deals, discounts, sales, or limited-time offers.
If there are no events, return an empty array.

Email details:
From: %s
Subject: %s

Email content:
%s`

func buildExtractPrompt(e *emaildomain.Email, content string, ref time.Time) string {
	sent := ref.Format(dateutil.DateLayout)
	from, subject := e.From, e.Subject
	if from == "" {
		from = "Unknown Sender"
	}
	if subject == "" {
		subject = "No Subject"
	}
	return fmt.Sprintf(extractPrompt,
		ref.Year(), sent, ref.AddDate(0, 0, 1).Format(dateutil.DateLayout), sent, sent,
		from, subject, content)
}

func processedKey(accountID, emailID string) string {
	return hash.Keyed("extracted", accountID+":"+emailID)
}

func (u *eventsUsecase) ExtractCalendarEvents(ctx context.Context, accountID string, emails []*emaildomain.Email, forceRefresh bool, tok registry.Token) ([]*domain.CalendarEvent, error) {
	if len(emails) == 0 {
		return u.GetEvents(ctx, accountID)
	}

	pending := emails
	if !forceRefresh {
		sources, err := u.eventRepo.SourceEmailIDs(accountID)
		if err != nil {
			return nil, err
		}
		pending = make([]*emaildomain.Email, 0, len(emails))
		for _, e := range emails {
			if !u.processed(ctx, accountID, e.ID, sources) {
				pending = append(pending, e)
			}
		}
	}
	u.log.Info().Str("account_id", accountID).Int("pending", len(pending)).Int("emails", len(emails)).Bool("force", forceRefresh).Msg("extracting calendar events")
	if len(pending) == 0 {
		return u.GetEvents(ctx, accountID)
	}

	extracted := make([][]*domain.CalendarEvent, len(pending))
	complete := make([]bool, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)
	for i, e := range pending {
		g.Go(func() error {
			if registry.Check(tok) != nil {
				return nil
			}
			extracted[i], complete[i] = u.extractFromEmail(gctx, accountID, e)
			return nil
		})
	}
	_ = g.Wait()

	if err := registry.Check(tok); err != nil {
		u.log.Warn().Err(err).Str("account_id", accountID).Msg("discarding extracted events")
		return nil, err
	}

	if forceRefresh {
		ids := make([]string, 0, len(pending))
		for _, e := range pending {
			ids = append(ids, e.ID)
		}
		if _, err := u.eventRepo.DeleteBySources(accountID, ids); err != nil {
			return nil, fmt.Errorf("failed to clear re-extracted events: %w", err)
		}
	}

	created := 0
	for i, events := range extracted {
		for _, ev := range events {
			ok, err := u.eventRepo.Create(ev)
			if err != nil {
				u.log.Warn().Err(err).Str("title", ev.Title).Msg("failed to store event")
				continue
			}
			if ok {
				created++
			}
		}
		if complete[i] {
			if err := u.cacheRepo.Put(ctx, cachedomain.FamilyEvent, processedKey(accountID, pending[i].ID), "1"); err != nil {
				u.log.Warn().Err(err).Msg("failed to mark email processed")
			}
		}
	}
	u.log.Info().Str("account_id", accountID).Int("created", created).Msg("event extraction finished")

	return u.refresh(accountID)
}

func (u *eventsUsecase) processed(ctx context.Context, accountID, emailID string, sources map[string]bool) bool {
	if sources[emailID] {
		return true
	}
	_, ok, err := u.cacheRepo.Get(ctx, processedKey(accountID, emailID))
	if err != nil {
		u.log.Warn().Err(err).Msg("processed-email lookup failed")
		return false
	}
	return ok
}

// extractFromEmail returns the events found in e. complete is false when
// the result came from the rule-based fallback or the model answer was
// unusable. Such an email is not marked in the cache, but any event stored
// from it still counts it as processed through SourceEmailIDs, so only a
// fallback pass that found nothing is retried.
func (u *eventsUsecase) extractFromEmail(ctx context.Context, accountID string, e *emaildomain.Email) ([]*domain.CalendarEvent, bool) {
	content := strings.TrimSpace(e.Body)
	if len(content) < minContentLength {
		content = strings.TrimSpace(e.Snippet)
	}
	if len(content) < minContentLength {
		return nil, true
	}
	if len(content) > maxPromptContent {
		content = content[:maxPromptContent]
	}

	ref := e.InternalDate
	if ref.IsZero() {
		ref = u.now()
	}
	ref = ref.In(u.loc)

	if u.aiService == nil {
		return u.ruleEvents(accountID, e, ref), false
	}

	text, err := u.aiService.Generate(ctx, buildExtractPrompt(e, content, ref), extractOptions)
	if err != nil {
		u.log.Warn().Err(err).Str("email_id", e.ID).Bool("transient", ai.IsTransient(err)).Msg("event extraction failed, using rule-based extractor")
		return u.ruleEvents(accountID, e, ref), false
	}
	fields, err := llmparse.EventListExtractor{}.Extract(text)
	if err != nil {
		u.log.Warn().Err(err).Str("email_id", e.ID).Msg("unusable event extraction response")
		return nil, false
	}

	out := make([]*domain.CalendarEvent, 0, len(fields))
	for _, f := range fields {
		if ev := u.newEvent(accountID, e.ID, f, ref, domain.ConfidenceHigh); ev != nil {
			out = append(out, ev)
		}
	}
	return out, true
}

func (u *eventsUsecase) ruleEvents(accountID string, e *emaildomain.Email, ref time.Time) []*domain.CalendarEvent {
	text := e.Snippet
	if len(strings.TrimSpace(text)) < minContentLength {
		text = e.Body
	}
	var out []*domain.CalendarEvent
	for _, f := range RuleBasedEvents(e.Subject, text, ref) {
		if ev := u.newEvent(accountID, e.ID, f, ref, domain.ConfidenceLow); ev != nil {
			out = append(out, ev)
		}
	}
	return out
}

// newEvent builds an unadded event from extracted fields. Events dated
// before the email was sent are dropped.
func (u *eventsUsecase) newEvent(accountID, emailID string, f llmparse.EventFields, ref time.Time, confidence domain.Confidence) *domain.CalendarEvent {
	if strings.TrimSpace(f.Title) == "" {
		return nil
	}
	ev := &domain.CalendarEvent{
		ID:            uuid.New().String(),
		AccountID:     accountID,
		Title:         strings.TrimSpace(f.Title),
		Time:          domain.StringPtr(f.Time),
		Location:      f.Location,
		Description:   f.Description,
		SourceEmailID: domain.StringPtr(emailID),
		Confidence:    confidence,
	}
	if date, ok := dateutil.Standardize(f.Date, ref); ok {
		if date < ref.Format(dateutil.DateLayout) {
			return nil
		}
		ev.Date = &date
	}
	ev.EventDate = eventDate(ev, ref, u.loc)
	ev.RefreshIdentity()
	return ev
}
