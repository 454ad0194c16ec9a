package usecase

import (
	"strings"

	emaildomain "ema-backend/internal/email/domain"

	"github.com/emersion/go-message/mail"
)

// ExtractContacts derives contacts from the From and To headers of emails.
// Later emails win on name for the same address.
func ExtractContacts(accountID string, emails []*emaildomain.Email) []emaildomain.Contact {
	byEmail := make(map[string]int)
	var out []emaildomain.Contact
	add := func(c emaildomain.Contact) {
		if i, ok := byEmail[c.Email]; ok {
			if c.Name != "" {
				out[i].Name = c.Name
			}
			return
		}
		byEmail[c.Email] = len(out)
		out = append(out, c)
	}

	for _, e := range emails {
		for _, header := range []string{e.From, e.To} {
			for _, c := range ParseAddresses(header) {
				c.AccountID = accountID
				c.Source = emaildomain.ContactSourceHeader
				add(c)
			}
		}
	}
	return out
}

// ParseAddresses reads "Name <addr>" lists and bare addresses. Entries
// that are not addresses are skipped.
func ParseAddresses(header string) []emaildomain.Contact {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	if addrs, err := mail.ParseAddressList(header); err == nil {
		out := make([]emaildomain.Contact, 0, len(addrs))
		for _, a := range addrs {
			out = append(out, emaildomain.Contact{
				Email: strings.ToLower(a.Address),
				Name:  strings.Trim(strings.TrimSpace(a.Name), `"'`),
			})
		}
		return out
	}

	// Malformed lists are common; fall back to splitting on commas.
	var out []emaildomain.Contact
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		name, addr := "", part
		if lt := strings.LastIndex(part, "<"); lt >= 0 {
			if gt := strings.LastIndex(part, ">"); gt > lt {
				name = strings.Trim(strings.TrimSpace(part[:lt]), `"'`)
				addr = part[lt+1 : gt]
			}
		}
		addr = strings.ToLower(strings.TrimSpace(addr))
		if !strings.Contains(addr, "@") || strings.ContainsAny(addr, " \t") {
			continue
		}
		out = append(out, emaildomain.Contact{Email: addr, Name: name})
	}
	return out
}

// DisplayName is the contact's name, or the local part of its address.
func DisplayName(c emaildomain.Contact) string {
	if c.Name != "" {
		return c.Name
	}
	local, _, _ := strings.Cut(c.Email, "@")
	return local
}
