package domain

import "time"

// Family groups cached records that share a time-to-live.
type Family string

const (
	FamilySummary        Family = "summary"
	FamilyClassification Family = "classification"
	FamilyChatReply      Family = "chat_reply"
	FamilyEmail          Family = "email"
	FamilyEvent          Family = "event"
	FamilyEmailSummary   Family = "email_summary"
	FamilyChatTurn       Family = "chat_turn"
)

const (
	day = 24 * time.Hour

	SummaryTTL      = day
	EmailTTL        = 7 * day
	EventTTL        = 7 * day
	EmailSummaryTTL = 7 * day
	ChatTurnTTL     = 30 * day
)

var ttls = map[Family]time.Duration{
	FamilySummary:        SummaryTTL,
	FamilyClassification: day,
	FamilyChatReply:      day,
	FamilyEmail:          EmailTTL,
	FamilyEvent:          EventTTL,
	FamilyEmailSummary:   EmailSummaryTTL,
	FamilyChatTurn:       ChatTurnTTL,
}

// TTL returns the family's lifetime; unknown families live one day.
func (f Family) TTL() time.Duration {
	if d, ok := ttls[f]; ok {
		return d
	}
	return day
}

// CachedEntry is one AI response keyed by a content hash. Hash is unique so
// identical content converges to one row.
type CachedEntry struct {
	ID        uint      `gorm:"primaryKey"`
	Hash      string    `gorm:"uniqueIndex;size:191;not null"`
	Family    Family    `gorm:"index;size:32;not null"`
	Value     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

func (CachedEntry) TableName() string {
	return "ai_cache"
}

// Expired reports whether the entry is older than its family's TTL at now.
func (e *CachedEntry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.Family.TTL()
}
