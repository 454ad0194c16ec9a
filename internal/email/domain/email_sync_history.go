package domain

import "time"

// EmailSyncHistory tracks which emails have been indexed in the vector store
// so repeated fetches do not re-embed them.
type EmailSyncHistory struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	AccountID string    `json:"account_id" gorm:"uniqueIndex:idx_account_email_sync;not null"`
	EmailID   string    `json:"email_id" gorm:"uniqueIndex:idx_account_email_sync;not null"`
	SyncedAt  time.Time `json:"synced_at"`
}

func (EmailSyncHistory) TableName() string {
	return "email_sync_histories"
}
