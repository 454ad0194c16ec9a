// Package contacts is the Contacts adapter over the Google People API.
package contacts

import (
	"context"
	"fmt"
	"strings"

	emaildomain "ema-backend/internal/email/domain"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

const personFields = "names,emailAddresses"

type Service struct {
	srv *people.Service
}

func NewService(ctx context.Context, ts oauth2.TokenSource) (*Service, error) {
	srv, err := people.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("unable to create People service: %w", err)
	}
	return &Service{srv: srv}, nil
}

// ListConnections returns one contact per email address of every connection.
func (s *Service) ListConnections(ctx context.Context) ([]emaildomain.Contact, error) {
	var out []emaildomain.Contact
	pageToken := ""
	for {
		call := s.srv.People.Connections.List("people/me").
			PersonFields(personFields).
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list connections: %w", err)
		}
		for _, p := range resp.Connections {
			out = append(out, personContacts(p)...)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			return out, nil
		}
	}
}

// Profile returns the signed-in user's own name and primary address.
func (s *Service) Profile(ctx context.Context) (emaildomain.Contact, error) {
	me, err := s.srv.People.Get("people/me").PersonFields(personFields).Context(ctx).Do()
	if err != nil {
		return emaildomain.Contact{}, fmt.Errorf("unable to get profile: %w", err)
	}
	found := personContacts(me)
	if len(found) == 0 {
		return emaildomain.Contact{}, fmt.Errorf("profile has no email address")
	}
	return found[0], nil
}

func personContacts(p *people.Person) []emaildomain.Contact {
	if p == nil {
		return nil
	}
	name := ""
	for _, n := range p.Names {
		if n.DisplayName != "" {
			name = n.DisplayName
			break
		}
	}
	var out []emaildomain.Contact
	for _, e := range p.EmailAddresses {
		addr := strings.ToLower(strings.TrimSpace(e.Value))
		if addr == "" {
			continue
		}
		c := emaildomain.Contact{Email: addr, Name: name, Source: emaildomain.ContactSourcePeople}
		// Primary address first.
		if e.Metadata != nil && e.Metadata.Primary {
			out = append([]emaildomain.Contact{c}, out...)
		} else {
			out = append(out, c)
		}
	}
	return out
}
