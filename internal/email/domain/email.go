package domain

import (
	"strings"
	"time"
)

// Email is a fetched message. It is immutable once stored and replaced
// wholesale when fetched again.
type Email struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	AccountID    string    `json:"-" gorm:"primaryKey"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Subject      string    `json:"subject"`
	Snippet      string    `json:"snippet"`
	Body         string    `json:"body,omitempty" gorm:"type:text"`
	InternalDate time.Time `json:"internalDate" gorm:"index"`
	IsRead       bool      `json:"isRead"`
	FetchedAt    time.Time `json:"fetchedAt" gorm:"index"`
}

func (Email) TableName() string {
	return "emails"
}

// Text is the best available content for prompts.
func (e *Email) Text() string {
	if strings.TrimSpace(e.Body) != "" {
		return e.Body
	}
	return e.Snippet
}

// Contact is keyed by email address; the latest name seen wins.
type Contact struct {
	AccountID string    `json:"-" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Contact) TableName() string {
	return "contacts"
}

const (
	ContactSourceHeader = "header"
	ContactSourcePeople = "people"
)

type TimeFilter string

const (
	TimeWeek  TimeFilter = "week"
	TimeMonth TimeFilter = "month"
	TimeYear  TimeFilter = "year"
	TimeAll   TimeFilter = "all"
)

type ReadFilter string

const (
	ReadAll    ReadFilter = "all"
	ReadOnly   ReadFilter = "read"
	UnreadOnly ReadFilter = "unread"
)

var excludedCategories = []string{"promotions", "social", "updates", "forums"}

// Filter selects which inbox messages to fetch.
type Filter struct {
	Time TimeFilter `json:"timeFilter"`
	Read ReadFilter `json:"readFilter"`
}

// Normalize replaces unknown values with week/all.
func (f Filter) Normalize() Filter {
	switch f.Time {
	case TimeWeek, TimeMonth, TimeYear, TimeAll:
	default:
		f.Time = TimeWeek
	}
	switch f.Read {
	case ReadAll, ReadOnly, UnreadOnly:
	default:
		f.Read = ReadAll
	}
	return f
}

func (f Filter) Key() string {
	f = f.Normalize()
	return string(f.Time) + "/" + string(f.Read)
}

// Query renders the filter in Gmail search syntax.
func (f Filter) Query() string {
	f = f.Normalize()
	parts := []string{"in:inbox"}
	switch f.Time {
	case TimeWeek:
		parts = append(parts, "newer_than:7d")
	case TimeMonth:
		parts = append(parts, "newer_than:1m")
	case TimeYear:
		parts = append(parts, "newer_than:1y")
	}
	switch f.Read {
	case ReadOnly:
		parts = append(parts, "is:read")
	case UnreadOnly:
		parts = append(parts, "is:unread")
	}
	for _, c := range excludedCategories {
		parts = append(parts, "-category:"+c)
	}
	return strings.Join(parts, " ")
}

// Since is the start of the time window, zero for TimeAll.
func (f Filter) Since(now time.Time) time.Time {
	switch f.Normalize().Time {
	case TimeWeek:
		return now.AddDate(0, 0, -7)
	case TimeMonth:
		return now.AddDate(0, -1, 0)
	case TimeYear:
		return now.AddDate(-1, 0, 0)
	}
	return time.Time{}
}

func (f Filter) MaxResults() int {
	if f.Normalize().Time == TimeAll {
		return 200
	}
	return 100
}
