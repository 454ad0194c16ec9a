package domain

import "time"

// EmailSummary stores cached AI-generated summaries for single emails
type EmailSummary struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	AccountID string    `json:"account_id" gorm:"uniqueIndex:idx_account_email_summary;not null"`
	EmailID   string    `json:"email_id" gorm:"uniqueIndex:idx_account_email_summary;not null"`
	Summary   string    `json:"summary" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for GORM
func (EmailSummary) TableName() string {
	return "email_summaries"
}
