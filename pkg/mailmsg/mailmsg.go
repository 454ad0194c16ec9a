// Package mailmsg builds and parses RFC 5322 messages for the mail adapters.
package mailmsg

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Outgoing is a plain-text message ready to be sent.
type Outgoing struct {
	FromName  string
	FromEmail string
	To        string
	Subject   string
	Body      string
}

// Build renders msg as raw MIME bytes.
func Build(msg Outgoing) ([]byte, error) {
	to, err := mail.ParseAddressList(msg.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	var h mail.Header
	h.SetDate(time.Now())
	if msg.FromEmail != "" {
		h.SetAddressList("From", []*mail.Address{{Name: msg.FromName, Address: msg.FromEmail}})
	}
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parsed is the subset of a message the assistant works with.
type Parsed struct {
	From    string
	To      string
	Subject string
	Date    time.Time
	Body    string
}

// Parse reads a raw message, preferring the text/plain part and falling
// back to tag-stripped HTML.
func Parse(r io.Reader) (*Parsed, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	out := &Parsed{}
	out.Subject, _ = mr.Header.Subject()
	out.Date, _ = mr.Header.Date()
	if from, err := mr.Header.AddressList("From"); err == nil {
		out.From = FormatAddressList(from)
	}
	if to, err := mr.Header.AddressList("To"); err == nil {
		out.To = FormatAddressList(to)
	}

	var plain, htmlBody string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		b, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}
		switch ct {
		case "text/plain":
			if plain == "" {
				plain = string(b)
			}
		case "text/html":
			if htmlBody == "" {
				htmlBody = string(b)
			}
		}
	}

	out.Body = plain
	if out.Body == "" {
		out.Body = StripHTML(htmlBody)
	}
	out.Body = strings.TrimSpace(strings.ReplaceAll(out.Body, "\r\n", "\n"))
	return out, nil
}

// FormatAddressList renders addresses as "Name <email>" joined by commas.
func FormatAddressList(addrs []*mail.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		} else {
			parts = append(parts, a.Address)
		}
	}
	return strings.Join(parts, ", ")
}

var (
	styleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe   = regexp.MustCompile(`<[^>]*>`)
)

// StripHTML drops tags, unescapes entities and collapses whitespace.
func StripHTML(s string) string {
	s = styleRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// Snippet shortens text to n runes with an ellipsis.
func Snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
