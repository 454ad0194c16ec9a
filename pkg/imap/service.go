package imap

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"time"

	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/mailmsg"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Service is the Mail adapter for IMAP accounts. Message ids are INBOX UIDs.
type Service struct {
	imapAddr string
	smtpHost string
	smtpAddr string
	username string
	password string
}

func NewService(imapHost string, imapPort int, smtpHost string, smtpPort int, username, password string) *Service {
	return &Service{
		imapAddr: net.JoinHostPort(imapHost, strconv.Itoa(imapPort)),
		smtpHost: smtpHost,
		smtpAddr: net.JoinHostPort(smtpHost, strconv.Itoa(smtpPort)),
		username: username,
		password: password,
	}
}

func (s *Service) connect(ctx context.Context) (*client.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := client.DialTLS(s.imapAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", s.imapAddr, err)
	}
	if err := c.Login(s.username, s.password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select("INBOX", true); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap select INBOX: %w", err)
	}
	return c, nil
}

// Verify checks the credentials by logging in once.
func (s *Service) Verify(ctx context.Context) error {
	c, err := s.connect(ctx)
	if err != nil {
		return err
	}
	return c.Logout()
}

// SearchCriteria translates a filter into an IMAP SEARCH.
func SearchCriteria(filter emaildomain.Filter, now time.Time) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	if since := filter.Since(now); !since.IsZero() {
		criteria.Since = since
	}
	switch filter.Normalize().Read {
	case emaildomain.ReadOnly:
		criteria.WithFlags = []string{imap.SeenFlag}
	case emaildomain.UnreadOnly:
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}
	return criteria
}

func (s *Service) ListMessageIDs(ctx context.Context, filter emaildomain.Filter) ([]string, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	uids, err := c.UidSearch(SearchCriteria(filter, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if limit := filter.MaxResults(); len(uids) > limit {
		uids = uids[:limit]
	}

	ids := make([]string, len(uids))
	for i, uid := range uids {
		ids[i] = strconv.FormatUint(uint64(uid), 10)
	}
	return ids, nil
}

func (s *Service) GetMessage(ctx context.Context, id string) (*emaildomain.Email, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid imap uid %q", id)
	}

	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var email *emaildomain.Email
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		parsed, err := mailmsg.Parse(body)
		if err != nil {
			continue
		}
		email = &emaildomain.Email{
			ID:           id,
			From:         parsed.From,
			To:           parsed.To,
			Subject:      parsed.Subject,
			Body:         parsed.Body,
			Snippet:      mailmsg.Snippet(parsed.Body, 200),
			InternalDate: msg.InternalDate,
			IsRead:       hasFlag(msg.Flags, imap.SeenFlag),
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch %s: %w", id, err)
	}
	if email == nil {
		return nil, fmt.Errorf("imap message %s not found", id)
	}
	return email, nil
}

// Send relays raw through the account's SMTP submission server.
func (s *Service) Send(ctx context.Context, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	parsed, err := mailmsg.Parse(bytesReader(raw))
	if err != nil {
		return "", err
	}
	to, err := recipients(parsed.To)
	if err != nil {
		return "", err
	}
	auth := smtp.PlainAuth("", s.username, s.password, s.smtpHost)
	if err := smtp.SendMail(s.smtpAddr, auth, s.username, to, raw); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return "", nil
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
