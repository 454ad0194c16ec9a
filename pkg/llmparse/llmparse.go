// Package llmparse decodes structured values out of free-text model
// responses. Each contract shape has its own extractor; all of them return
// ErrMalformed when the response does not honor the contract.
package llmparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrMalformed = errors.New("malformed model output")

// Extractor decodes one contract shape from model text.
type Extractor[T any] interface {
	Extract(text string) (T, error)
}

// EmailDraft is the To/Subject/Body triple of a composed email.
type EmailDraft struct {
	To      string
	Subject string
	Body    string
}

var (
	toRe      = regexp.MustCompile(`(?im)^\s*\**To:\**\s*(.*)$`)
	subjectRe = regexp.MustCompile(`(?im)^\s*\**Subject:\**\s*(.*)$`)
	bodyRe    = regexp.MustCompile(`(?is)\**Body:\**\s*(.*)$`)
)

// EmailDraftExtractor reads the "To: / Subject: / Body:" labelled format.
type EmailDraftExtractor struct{}

func (EmailDraftExtractor) Extract(text string) (EmailDraft, error) {
	var d EmailDraft
	if m := toRe.FindStringSubmatch(text); m != nil {
		d.To = strings.Trim(strings.TrimSpace(m[1]), "<>*")
	}
	if m := subjectRe.FindStringSubmatch(text); m != nil {
		d.Subject = strings.Trim(strings.TrimSpace(m[1]), "*")
	}
	if m := bodyRe.FindStringSubmatch(text); m != nil {
		d.Body = strings.TrimSpace(m[1])
	}
	if d.Subject == "" || d.Body == "" {
		return EmailDraft{}, fmt.Errorf("%w: missing subject or body", ErrMalformed)
	}
	return d, nil
}

// EventFields is the event quintuple extracted from chat or mail.
type EventFields struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// EventExtractor decodes the first well-formed JSON object in the text.
type EventExtractor struct{}

func (EventExtractor) Extract(text string) (EventFields, error) {
	obj, err := FirstObject(text)
	if err != nil {
		return EventFields{}, err
	}
	ev := fieldsFromMap(obj)
	if ev.Title == "" {
		return EventFields{}, fmt.Errorf("%w: event without title", ErrMalformed)
	}
	return ev, nil
}

// EventListExtractor decodes a JSON array of events. Entries without a
// title are dropped; an empty array is a valid answer.
type EventListExtractor struct{}

func (EventListExtractor) Extract(text string) ([]EventFields, error) {
	text = stripFences(text)
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON array", ErrMalformed)
	}

	var raw []map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := make([]EventFields, 0, len(raw))
	for _, item := range raw {
		ev := fieldsFromMap(item)
		if ev.Title == "" {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Classification is the intent/confidence pair.
type Classification struct {
	Type       string
	Confidence float64
}

// ClassificationExtractor decodes {"type": ..., "confidence": ...} and
// rejects types outside Allowed.
type ClassificationExtractor struct {
	Allowed []string
}

func (c ClassificationExtractor) Extract(text string) (Classification, error) {
	obj, err := FirstObject(text)
	if err != nil {
		return Classification{}, err
	}
	typ := strings.ToLower(strings.TrimSpace(str(obj["type"])))
	if typ == "" {
		typ = strings.ToLower(strings.TrimSpace(str(obj["intent"])))
	}
	allowed := false
	for _, a := range c.Allowed {
		if typ == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return Classification{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, typ)
	}

	conf := 0.6
	switch v := obj["confidence"].(type) {
	case float64:
		conf = v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			conf = f
		}
	}
	conf = max(0, min(conf, 1))
	return Classification{Type: typ, Confidence: conf}, nil
}

// FirstObject returns the first JSON object that decodes cleanly.
func FirstObject(text string) (map[string]any, error) {
	text = stripFences(text)
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err == nil {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON object", ErrMalformed)
}

func fieldsFromMap(m map[string]any) EventFields {
	return EventFields{
		Title:       strings.TrimSpace(str(m["title"])),
		Date:        strings.TrimSpace(str(m["date"])),
		Time:        strings.TrimSpace(str(m["time"])),
		Location:    strings.TrimSpace(str(m["location"])),
		Description: strings.TrimSpace(str(m["description"])),
	}
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if strings.EqualFold(t, "null") || strings.EqualFold(t, "none") {
			return ""
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func stripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	return strings.ReplaceAll(text, "```", "")
}
