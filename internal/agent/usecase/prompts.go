package usecase

import (
	"fmt"
	"strings"
	"time"

	"ema-backend/internal/agent/domain"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/ai"
)

const (
	historyWindow    = 5
	maxPromptContact = 30
	maxContextEmails = 20
	maxContextChars  = 12000
	maxEmailBody     = 1500
)

var (
	composeOptions  = ai.GenerateOptions{Temperature: 0.7, MaxOutputTokens: 800}
	questionOptions = ai.GenerateOptions{Temperature: 0.3, MaxOutputTokens: 300}
	eventOptions    = ai.GenerateOptions{Temperature: 0.1, MaxOutputTokens: 200}
	chatOptions     = ai.GenerateOptions{Temperature: 0.7, TopP: 0.8, TopK: 40, MaxOutputTokens: 500}
)

// historyText renders the last few turns oldest first. turns arrive newest
// first.
func historyText(turns []domain.ChatTurn) string {
	n := min(len(turns), historyWindow)
	if n == 0 {
		return ""
	}
	parts := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		parts = append(parts, fmt.Sprintf("User: %s\nAssistant: %s", turns[i].UserText, turns[i].AgentText))
	}
	return strings.Join(parts, "\n\n")
}

func historySection(turns []domain.ChatTurn) string {
	h := historyText(turns)
	if h == "" {
		return ""
	}
	return "Recent conversation history:\n" + h + "\n\n"
}

func composePrompt(contacts []emaildomain.Contact, resolved *emaildomain.Contact, sender emaildomain.Contact, turns []domain.ChatTurn, request string) string {
	var lines []string
	if resolved != nil {
		lines = append(lines, fmt.Sprintf("- %s: %s (the recipient the user means)", contactName(*resolved), resolved.Email))
	}
	for i, c := range contacts {
		if i >= maxPromptContact {
			break
		}
		if resolved != nil && strings.EqualFold(c.Email, resolved.Email) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", contactName(c), c.Email))
	}
	if len(lines) == 0 {
		lines = append(lines, "(none)")
	}

	senderLine := "the user"
	if sender.Name != "" {
		senderLine = sender.Name
	}

	return fmt.Sprintf(`You are an email assistant writing an email on the user's behalf.

Rules:
1. Only address the email to one of the known contacts below, or to an address the user typed.
2. Never invent an address. If nobody matches, write "To: Contact not found".
3. The subject and body must reflect what the user asked for.
4. Keep it well written and of a sensible length.
5. Sign it as %s.

Use exactly this format:
To: recipient@example.com
Subject: email subject
Body:
email message

Known contacts:
%s

%sUser's request: "%s"`, senderLine, strings.Join(lines, "\n"), historySection(turns), request)
}

func editPrompt(draft *domain.PendingEmailDraft, turns []domain.ChatTurn, instruction string) string {
	return fmt.Sprintf(`You are an email assistant. The user wants to modify the email drafted below:
"%s"

Current email:
To: %s
Subject: %s
Body:
%s

%sRewrite the email to satisfy the request and change only what is needed. Keep the recipient.

Use exactly this format:
To: %s
Subject: subject
Body:
message`, instruction, draft.To, draft.Subject, draft.Body, historySection(turns), draft.To)
}

// emailContext renders ranked emails until either bound is reached.
func emailContext(emails []*emaildomain.Email) string {
	var b strings.Builder
	for i, e := range emails {
		if i >= maxContextEmails {
			break
		}
		body := e.Body
		if body == "" {
			body = e.Snippet
		}
		if len(body) > maxEmailBody {
			body = body[:maxEmailBody] + "..."
		}
		entry := fmt.Sprintf("Email %d:\nFrom: %s\nSubject: %s\nDate: %s\nRead: %t\nContent: %s\n\n",
			i+1, e.From, e.Subject, e.InternalDate.Format(time.RFC1123), e.IsRead, body)
		if b.Len()+len(entry) > maxContextChars && b.Len() > 0 {
			break
		}
		b.WriteString(entry)
	}
	return b.String()
}

func questionPrompt(turns []domain.ChatTurn, question string, emails []*emaildomain.Email) string {
	return fmt.Sprintf(`You are EMA, an email assistant. Answer the user's question about their emails.
Be precise and conversational. Quote senders, dates and details exactly as they appear.
If the emails do not contain the answer, say so.

%sUser's question: "%s"

Emails:
%s`, historySection(turns), question, emailContext(emails))
}

func eventPrompt(text string, now time.Time) string {
	today := now.Format("Monday, 2006-01-02")
	return fmt.Sprintf(`Extract the calendar event the user describes. Today is %s.
Resolve relative dates such as "tomorrow" or "next Friday" against today.

Respond ONLY with one JSON object:
{"title": "...", "date": "YYYY-MM-DD or empty if not given", "time": "HH:MM AM/PM or empty", "location": "... or empty", "description": "... or empty"}

User message: "%s"`, today, text)
}

func chatPrompt(turns []domain.ChatTurn, message string) string {
	return fmt.Sprintf(`You are EMA (Email Management Assistant), a friendly assistant.
You understand English and Arabic written in Latin letters (Arabizi). Reply in the user's language.
Keep continuity with the conversation and answer references to earlier messages from that context.

%sUser's message: %s`, historySection(turns), message)
}

func contactName(c emaildomain.Contact) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Email
}
