package usecase

import (
	"regexp"
	"strings"
	"time"

	"ema-backend/pkg/dateutil"
	"ema-backend/pkg/llmparse"
)

const minContentLength = 10

var (
	ruleDateRe = regexp.MustCompile(`\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|\d{4}-\d{2}-\d{2}`)
	ruleTimeRe = regexp.MustCompile(`(?i)\d{1,2}[:.]\d{2}\s*(?:am|pm)?`)
	nonWordRe  = regexp.MustCompile(`[^\w\s]`)
)

// RuleBasedEvents scans text for date-like substrings and builds one event
// per date. The n-th time found in the text is paired with the n-th date.
// Dates are returned as YYYY-MM-DD resolved against ref.
func RuleBasedEvents(subject, text string, ref time.Time) []llmparse.EventFields {
	text = strings.TrimSpace(text)
	if len(text) < minContentLength {
		return nil
	}

	dates := ruleDateRe.FindAllString(text, -1)
	if len(dates) == 0 {
		return nil
	}
	// Dates like 12.03.2025 would otherwise read as times.
	times := ruleTimeRe.FindAllString(ruleDateRe.ReplaceAllString(text, " "), -1)
	words := strings.Fields(text)

	description := text
	if len(description) > 100 {
		description = description[:100] + "..."
	}

	out := make([]llmparse.EventFields, 0, len(dates))
	for i, raw := range dates {
		date, ok := dateutil.Standardize(raw, ref)
		if !ok {
			continue
		}
		ev := llmparse.EventFields{
			Title:       ruleTitle(words, raw, subject),
			Date:        date,
			Description: description,
		}
		if i < len(times) {
			ev.Time = strings.TrimSpace(times[i])
		}
		out = append(out, ev)
	}
	return out
}

// ruleTitle takes up to three words on each side of the date.
func ruleTitle(words []string, date, subject string) string {
	pos := -1
	for i, w := range words {
		if strings.Contains(w, date) {
			pos = i
			break
		}
	}
	if pos >= 0 {
		var picked []string
		picked = append(picked, words[max(0, pos-3):pos]...)
		picked = append(picked, words[pos+1:min(len(words), pos+4)]...)
		title := strings.Join(strings.Fields(nonWordRe.ReplaceAllString(strings.Join(picked, " "), "")), " ")
		if title != "" {
			return title
		}
	}
	if s := strings.TrimSpace(subject); s != "" {
		return s
	}
	return "Event from email"
}
