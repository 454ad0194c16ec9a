package usecase

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"ema-backend/internal/agent/domain"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/fuzzy"
	"ema-backend/pkg/llmparse"
	"ema-backend/pkg/mailmsg"
)

var (
	addressRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// A name is one word, optionally followed by a capitalized surname.
	recipientRes = []*regexp.Regexp{
		regexp.MustCompile(`\b(?i:to)\s+(\p{L}[\p{L}0-9._'-]*(?:\s+\p{Lu}[\p{L}'-]*)?)`),
		regexp.MustCompile(`\b(?i:e-?mail|message|write)\s+(\p{L}[\p{L}0-9._'-]*(?:\s+\p{Lu}[\p{L}'-]*)?)`),
	}

	notRecipients = map[string]bool{
		"me": true, "him": true, "her": true, "them": true, "the": true, "my": true,
		"a": true, "an": true, "to": true, "someone": true, "everyone": true, "about": true,
		"email": true, "mail": true, "send": true, "write": true, "say": true, "tell": true, "ask": true,
	}
)

// resolveRecipient finds the contact the request is addressed to: a literal
// address, then a contact search by name or partial address, then a fuzzy
// scan of all contacts.
func (a *agentUsecase) resolveRecipient(ctx context.Context, accountID, text string) *emaildomain.Contact {
	if addr := addressRe.FindString(text); addr != "" {
		return &emaildomain.Contact{Email: addr}
	}

	name := recipientName(text)
	if name == "" {
		return nil
	}

	found, err := a.mail.SearchContacts(ctx, accountID, name)
	if err != nil {
		a.log.Warn().Err(err).Msg("contact search failed")
	}
	if len(found) > 0 {
		return &found[0]
	}

	all, err := a.mail.ListContacts(ctx, accountID)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to list contacts")
		return nil
	}
	var best *emaildomain.Contact
	bestScore := 0.0
	for i := range all {
		if s := fuzzy.ContactScore(name, all[i].Name, all[i].Email); s > bestScore {
			best, bestScore = &all[i], s
		}
	}
	return best
}

func recipientName(text string) string {
	for _, re := range recipientRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(m[1])
			if !notRecipients[strings.ToLower(strings.Fields(candidate)[0])] {
				return candidate
			}
		}
	}
	return ""
}

func (a *agentUsecase) composeEmail(ctx context.Context, turn Turn, state *domain.SessionState, history []domain.ChatTurn) *Response {
	recipient := a.resolveRecipient(ctx, turn.AccountID, turn.Message)

	contacts, err := a.mail.ListContacts(ctx, turn.AccountID)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to list contacts")
	}
	sender, err := a.mail.Profile(ctx, turn.AccountID)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to load sender profile")
	}

	out, err := a.generate(ctx, composePrompt(contacts, recipient, sender, history, turn.Message), composeOptions)
	if err != nil {
		a.log.Error().Err(err).Msg("email composition failed")
		return &Response{Reply: "❌ Error generating the email. Please try again later."}
	}
	draft, err := llmparse.EmailDraftExtractor{}.Extract(out)
	if err != nil {
		return &Response{Reply: "❌ I couldn't generate a complete email. Please rephrase your request or add more details."}
	}

	to := draft.To
	if recipient != nil {
		to = recipient.Email
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return &Response{Reply: "I couldn't find that contact. What's their email address?"}
	}

	state.Reset()
	state.State = domain.StateAwaitingEmailConfirmation
	state.Draft = &domain.PendingEmailDraft{
		To:        to,
		Subject:   draft.Subject,
		Body:      draft.Body,
		FromName:  sender.Name,
		FromEmail: sender.Email,
	}
	return &Response{
		Reply:             fmt.Sprintf("Here's your email:\n\nTo: %s\nSubject: %s\n\n%s\n\nDo you want to send this? (Yes/No)", to, draft.Subject, draft.Body),
		NeedsConfirmation: true,
		PendingEmail:      state.Draft,
	}
}

// editDraft regenerates subject and body. The recipient never changes.
func (a *agentUsecase) editDraft(ctx context.Context, turn Turn, state *domain.SessionState, history []domain.ChatTurn) *Response {
	draft := state.Draft
	keep := &Response{NeedsConfirmation: true, PendingEmail: draft, Intent: IntentSendEmail}

	out, err := a.generate(ctx, editPrompt(draft, history, turn.Message), composeOptions)
	if err != nil {
		a.log.Error().Err(err).Msg("email edit failed")
		keep.Reply = "❌ I ran into an error editing your email. Try different instructions, or say Yes to send the original version."
		return keep
	}
	edited, err := llmparse.EmailDraftExtractor{}.Extract(out)
	if err != nil {
		keep.Reply = "❌ I had trouble editing your email. Try a different change, or say Yes to send the original version."
		return keep
	}

	draft.Subject = edited.Subject
	draft.Body = edited.Body
	return &Response{
		Reply:             fmt.Sprintf("I've updated your email:\n\nTo: %s\nSubject: %s\n\n%s\n\nDo you want to send this version? (Yes/No)", draft.To, draft.Subject, draft.Body),
		Intent:            IntentSendEmail,
		NeedsConfirmation: true,
		PendingEmail:      draft,
	}
}

func (a *agentUsecase) sendDraft(ctx context.Context, turn Turn, state *domain.SessionState) *Response {
	draft := state.Draft
	_, err := a.mail.SendEmail(ctx, turn.AccountID, mailmsg.Outgoing{
		FromName:  draft.FromName,
		FromEmail: draft.FromEmail,
		To:        draft.To,
		Subject:   draft.Subject,
		Body:      draft.Body,
	})
	if err != nil {
		a.log.Error().Err(err).Str("to", draft.To).Msg("failed to send drafted email")
		return &Response{
			Reply:             "❌ Failed to send the email. Say Yes to try again or No to discard it.",
			Intent:            IntentSendEmail,
			NeedsConfirmation: true,
			PendingEmail:      draft,
		}
	}
	state.Reset()
	return &Response{Reply: fmt.Sprintf("✅ Email sent to %s!", draft.To), Intent: IntentSendEmail}
}

func (a *agentUsecase) answerQuestion(ctx context.Context, turn Turn, history []domain.ChatTurn) *Response {
	if len(turn.Emails) == 0 {
		return &Response{
			Reply:      "I need to load your emails before I can answer that. One moment...",
			NeedsFetch: true,
		}
	}
	ranked := a.mail.RankForQuestion(ctx, turn.AccountID, turn.Message, turn.Emails)
	out, err := a.generate(ctx, questionPrompt(history, turn.Message, ranked), questionOptions)
	if err != nil {
		a.log.Error().Err(err).Msg("email question failed")
		return &Response{Reply: "I ran into an error analyzing your emails. Please try again."}
	}
	if out == "" {
		return &Response{Reply: "I couldn't find an answer in your emails."}
	}
	return &Response{Reply: out}
}
