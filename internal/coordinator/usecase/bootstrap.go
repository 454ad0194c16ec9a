package usecase

import (
	"context"

	"ema-backend/internal/coordinator/dto"
	"ema-backend/internal/coordinator/registry"
	emaildomain "ema-backend/internal/email/domain"

	"github.com/pkg/errors"
)

var bootstrapFilter = emaildomain.Filter{Time: emaildomain.TimeWeek, Read: emaildomain.ReadAll}

// Bootstrap prepares an account after sign-in: sweep expired records,
// fetch the last week of mail (which stores it and derives contacts), sync
// the contact directory, summarize, then extract events. Only a failed
// fetch or a cancellation aborts it.
func (c *coordinator) Bootstrap(ctx context.Context, caller Caller, tok registry.Token) (dto.Result, error) {
	log := c.log.With().Str("account", caller.AccountID).Logger()

	swept := c.Sweep(ctx)
	if err := registry.Check(tok); err != nil {
		return nil, err
	}

	emails, err := c.emails.FetchEmails(ctx, caller.AccountID, bootstrapFilter, tok)
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap fetch")
	}

	contacts, err := c.emails.SyncContacts(ctx, caller.AccountID)
	if err != nil {
		log.Warn().Err(err).Msg("bootstrap contacts sync failed")
	}
	if err := registry.Check(tok); err != nil {
		return nil, err
	}

	summary := ""
	if len(emails) > 0 {
		sum, err := c.emails.SummarizeEmails(ctx, caller.AccountID, caller.SessionID, emails, bootstrapFilter, false, tok)
		switch {
		case errors.Is(err, ErrCancelled):
			return nil, err
		case err != nil:
			log.Warn().Err(err).Msg("bootstrap summary failed")
		default:
			summary = sum.Summary
		}
	}

	events, err := c.events.ExtractCalendarEvents(ctx, caller.AccountID, emails, false, tok)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return nil, err
		}
		log.Warn().Err(err).Msg("bootstrap event extraction failed")
		if events, err = c.events.GetEvents(ctx, caller.AccountID); err != nil {
			return nil, err
		}
	}

	log.Info().Int("emails", len(emails)).Int("events", len(events)).Int64("swept", swept).Msg("bootstrap complete")
	return dto.Result{
		"emails":   nonNilEmails(emails),
		"events":   nonNilEvents(events),
		"summary":  summary,
		"contacts": contacts,
		"swept":    swept,
	}, nil
}

func (c *coordinator) Sweep(ctx context.Context) int64 {
	now := c.now()
	var total int64
	for _, s := range c.sweepers {
		n, err := s.SweepExpired(ctx, now)
		if err != nil {
			c.log.Warn().Err(err).Msg("sweep failed")
			continue
		}
		total += n
	}
	if total > 0 {
		c.log.Info().Int64("removed", total).Msg("expired records swept")
	}
	return total
}

func (c *coordinator) SyncAll(ctx context.Context) int {
	ids, err := c.accounts.AccountIDs(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to list accounts for calendar sync")
		return 0
	}
	total := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		n, err := c.events.SyncCalendarEvents(ctx, id, registry.None)
		if err != nil {
			c.log.Warn().Err(err).Str("account", id).Msg("calendar sync failed")
			continue
		}
		total += n
	}
	return total
}
