package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strings"
	"time"

	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/mailmsg"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const user = "me"

// Service is the Mail adapter over the Gmail API for one account.
type Service struct {
	srv *gmail.Service
}

// NewService creates a Gmail client authorized by ts.
func NewService(ctx context.Context, ts oauth2.TokenSource) (*Service, error) {
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Service{srv: srv}, nil
}

// ListMessageIDs returns ids of inbox messages matching filter, newest first.
func (s *Service) ListMessageIDs(ctx context.Context, filter emaildomain.Filter) ([]string, error) {
	limit := filter.MaxResults()
	ids := make([]string, 0, limit)
	pageToken := ""

	for len(ids) < limit {
		call := s.srv.Users.Messages.List(user).
			Q(filter.Query()).
			MaxResults(int64(min(limit-len(ids), 500))).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return ids, nil
}

// GetMessage fetches one message in full.
func (s *Service) GetMessage(ctx context.Context, id string) (*emaildomain.Email, error) {
	msg, err := s.srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to get message %s: %w", id, err)
	}
	return convertGmailMessageToEmail(msg), nil
}

// Send submits a raw RFC 5322 message and returns the new message id.
func (s *Service) Send(ctx context.Context, raw []byte) (string, error) {
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	sent, err := s.srv.Users.Messages.Send(user, msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to send message: %w", err)
	}
	return sent.Id, nil
}

// Watch registers the inbox for push notifications on topic and returns
// the current history id.
func (s *Service) Watch(ctx context.Context, topicName string) (uint64, error) {
	resp, err := s.srv.Users.Watch(user, &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to watch mailbox: %w", err)
	}
	return resp.HistoryId, nil
}

func convertGmailMessageToEmail(msg *gmail.Message) *emaildomain.Email {
	email := &emaildomain.Email{
		ID:           msg.Id,
		Snippet:      html.UnescapeString(msg.Snippet),
		InternalDate: time.UnixMilli(msg.InternalDate),
		IsRead:       !hasLabel(msg.LabelIds, "UNREAD"),
	}
	if msg.Payload == nil {
		return email
	}

	email.From = getHeader(msg.Payload.Headers, "From")
	email.To = getHeader(msg.Payload.Headers, "To")
	email.Subject = getHeader(msg.Payload.Headers, "Subject")

	plain, htmlBody := getEmailBody(msg.Payload)
	email.Body = strings.TrimSpace(plain)
	if email.Body == "" && htmlBody != "" {
		email.Body = mailmsg.StripHTML(htmlBody)
	}
	if email.Snippet == "" {
		email.Snippet = mailmsg.Snippet(email.Body, 200)
	}
	return email
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// getEmailBody walks the MIME tree and returns the first text/plain and
// text/html bodies it finds.
func getEmailBody(payload *gmail.MessagePart) (plain, htmlBody string) {
	var walk func(part *gmail.MessagePart)
	walk = func(part *gmail.MessagePart) {
		if part == nil {
			return
		}
		if part.Body != nil && part.Body.Data != "" {
			if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
				switch part.MimeType {
				case "text/plain":
					if plain == "" {
						plain = string(data)
					}
				case "text/html":
					if htmlBody == "" {
						htmlBody = string(data)
					}
				}
			}
		}
		for _, p := range part.Parts {
			walk(p)
		}
	}
	walk(payload)
	return plain, htmlBody
}

func hasLabel(labels []string, labelID string) bool {
	for _, l := range labels {
		if l == labelID {
			return true
		}
	}
	return false
}
