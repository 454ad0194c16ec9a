package usecase

import (
	"context"
	"regexp"
	"strings"
	"time"

	"ema-backend/internal/agent/domain"
	cachedomain "ema-backend/internal/cache/domain"
	"ema-backend/pkg/dateutil"
	"ema-backend/pkg/hash"
)

const shortMessage = 20

var (
	referenceRe   = regexp.MustCompile(`(?i)\b(it|that|this|they|them|he|she|previous|last|earlier|before|above)\b`)
	clockInTextRe = regexp.MustCompile(`(?i)\b\d{1,2}(?:[:.]\d{2})?\s*(?:am|pm)\b|\b\d{1,2}:\d{2}\b`)
)

// chat answers general conversation. Short self-contained messages share
// cached replies; anything referring back to the conversation does not.
func (a *agentUsecase) chat(ctx context.Context, turn Turn, history []domain.ChatTurn) *Response {
	cacheable := len(turn.Message) < shortMessage && !referenceRe.MatchString(turn.Message)
	key := hash.Keyed("chat", turn.Message)

	if cacheable {
		if reply, ok, err := a.cacheRepo.Get(ctx, key); err != nil {
			a.log.Warn().Err(err).Msg("chat cache lookup failed")
		} else if ok && reply != "" {
			return &Response{Reply: reply}
		}
	}

	out, err := a.generate(ctx, chatPrompt(history, turn.Message), chatOptions)
	if err != nil {
		a.log.Error().Err(err).Msg("chat generation failed")
		return &Response{Reply: "Sorry, I ran into an error. Please try again."}
	}
	if out == "" {
		return &Response{Reply: "I couldn't process that. Please try again."}
	}

	if cacheable {
		if err := a.cacheRepo.Put(ctx, cachedomain.FamilyChatReply, key, out); err != nil {
			a.log.Warn().Err(err).Msg("failed to cache chat reply")
		}
	}
	return &Response{Reply: out}
}

// findDate looks for a date phrase anywhere in text, preferring the longest
// span.
func findDate(text string, now time.Time) (string, bool) {
	if d, ok := dateutil.Standardize(text, now); ok {
		return d, true
	}
	words := strings.Fields(text)
	for i := range words {
		words[i] = strings.Trim(words[i], ".!?;\"'()")
	}
	for span := min(3, len(words)); span >= 1; span-- {
		for i := 0; i+span <= len(words); i++ {
			phrase := strings.TrimSuffix(strings.Join(words[i:i+span], " "), ",")
			if d, ok := dateutil.Standardize(phrase, now); ok {
				return d, true
			}
		}
	}
	return "", false
}
