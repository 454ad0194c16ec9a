package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	cachedomain "ema-backend/internal/cache/domain"
	cacherepo "ema-backend/internal/cache/repository"
	"ema-backend/pkg/ai"
	"ema-backend/pkg/fallback"
	"ema-backend/pkg/hash"
	"ema-backend/pkg/llmparse"
	"ema-backend/pkg/logger"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/rs/zerolog"
)

// Intent is what the user wants from a chat message.
type Intent string

const (
	IntentSendEmail     Intent = "send_email"
	IntentEmailQuestion Intent = "email_question"
	IntentAddEvent      Intent = "add_calendar_event"
	IntentConversation  Intent = "conversation"
)

// Classification is an intent with a confidence in [0, 1].
type Classification struct {
	Type       Intent  `json:"type"`
	Confidence float64 `json:"confidence"`
}

var defaultClassification = Classification{Type: IntentConversation, Confidence: 0.5}

var classifyOptions = ai.GenerateOptions{Temperature: 0.1, MaxOutputTokens: 50}

type intentRule struct {
	re    *regexp.Regexp
	class Classification
}

// Checked in order; the first match wins.
var intentRules = []intentRule{
	{
		re:    regexp.MustCompile(`(?i)\b(send\s+(an?\s+)?e-?mail|write\s+(an?\s+)?e-?mail|e-?mail\s+to|compose\s+(an?\s+)?e-?mail|draft\s+(an?\s+)?e-?mail|send\s+.*\ban?\s+(message|note))\b`),
		class: Classification{Type: IntentSendEmail, Confidence: 0.9},
	},
	{
		re:    regexp.MustCompile(`(?i)\b(add\s+.*\b(calendar|event)|schedule|set\s+up\s+a\s+meeting|remind\s+me|create\s+(an\s+)?event|book\s+.*\b(meeting|call))\b`),
		class: Classification{Type: IntentAddEvent, Confidence: 0.85},
	},
	{
		re:    regexp.MustCompile(`(?i)\b(e-?mails?|inbox|mail|unread|messages?)\b`),
		class: Classification{Type: IntentEmailQuestion, Confidence: 0.8},
	},
}

const classifyPrompt = `Classify this user message into exactly one of these categories:
- "send_email": the user wants to write, compose, or send an email to someone
- "email_question": the user asks about their emails, inbox, or messages
- "add_calendar_event": the user wants to add, schedule, or book an event or meeting
- "conversation": general chat, greetings, or anything else

Respond ONLY with JSON like {"type": "conversation", "confidence": 0.7}.

User message: "%s"`

// Classifier maps free text to an Intent through cache, rules and the
// model, in that order.
type Classifier struct {
	cacheRepo cacherepo.CacheRepository
	gen       ai.TextGenerator
	extractor llmparse.ClassificationExtractor
	log       zerolog.Logger
}

func NewClassifier(cacheRepo cacherepo.CacheRepository, log zerolog.Logger) *Classifier {
	return &Classifier{
		cacheRepo: cacheRepo,
		extractor: llmparse.ClassificationExtractor{Allowed: []string{
			string(IntentSendEmail), string(IntentEmailQuestion), string(IntentAddEvent), string(IntentConversation),
		}},
		log: logger.Component(log, "Classifier"),
	}
}

func (c *Classifier) SetAIService(svc ai.TextGenerator) {
	c.gen = svc
}

// Classify returns the intent of text and which stage produced it:
// "cache", "rules", "model" or "default".
func (c *Classifier) Classify(ctx context.Context, text string) (Classification, string) {
	text = strings.TrimSpace(text)
	key := hash.Keyed("classify", text)

	chain := fallback.Chain[Classification]{
		fallback.Named("cache", func(ctx context.Context) fn.Option[Classification] {
			var cached Classification
			ok, err := cacherepo.GetJSON(ctx, c.cacheRepo, key, &cached)
			if err != nil {
				c.log.Warn().Err(err).Msg("classification cache lookup failed")
			}
			if !ok || cached.Type == "" {
				return fn.None[Classification]()
			}
			return fn.Some(cached)
		}),
		fallback.Named("rules", func(ctx context.Context) fn.Option[Classification] {
			for _, r := range intentRules {
				if r.re.MatchString(text) {
					return fn.Some(r.class)
				}
			}
			return fn.None[Classification]()
		}),
		fallback.Named("model", func(ctx context.Context) fn.Option[Classification] {
			return c.classifyWithModel(ctx, text)
		}),
	}

	out, source := chain.Run(ctx)
	if out.IsNone() {
		return defaultClassification, "default"
	}
	result := out.UnwrapOr(defaultClassification)
	if source != "cache" {
		if err := cacherepo.PutJSON(ctx, c.cacheRepo, cachedomain.FamilyClassification, key, result); err != nil {
			c.log.Warn().Err(err).Msg("failed to cache classification")
		}
	}
	return result, source
}

func (c *Classifier) classifyWithModel(ctx context.Context, text string) fn.Option[Classification] {
	if c.gen == nil {
		return fn.None[Classification]()
	}
	out, err := c.gen.Generate(ctx, fmt.Sprintf(classifyPrompt, text), classifyOptions)
	if err != nil {
		c.log.Warn().Err(err).Msg("model classification failed")
		return fn.None[Classification]()
	}
	parsed, err := c.extractor.Extract(out)
	if err != nil {
		c.log.Debug().Err(err).Msg("unusable classification response")
		return fn.None[Classification]()
	}
	return fn.Some(Classification{Type: Intent(parsed.Type), Confidence: clamp01(parsed.Confidence)})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
