package domain

import "time"

type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderIMAP   Provider = "imap"
)

// Account is one signed-in mailbox. Secrets are stored sealed.
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	Name         string    `json:"name"`
	Provider     Provider  `json:"provider"`
	AccessToken  string    `json:"-" gorm:"type:text"`
	RefreshToken string    `json:"-" gorm:"type:text"`
	TokenExpiry  time.Time `json:"-"`
	IMAPPassword string    `json:"-" gorm:"type:text"`
	// HistoryID is the last Gmail push history id processed.
	HistoryID uint64    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// Session is what a validated bearer token resolves to.
type Session struct {
	ID      string
	Account *Account
}
