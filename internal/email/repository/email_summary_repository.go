package repository

import (
	"time"

	emaildomain "ema-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailSummaryRepository defines the interface for email summary operations
type EmailSummaryRepository interface {
	// GetSummary retrieves a cached summary for an email
	GetSummary(accountID, emailID string) (*emaildomain.EmailSummary, error)
	// GetSummaries retrieves cached summaries for multiple emails
	GetSummaries(accountID string, emailIDs []string) (map[string]string, error)
	// SaveSummary saves or updates a summary for an email
	SaveSummary(accountID, emailID, summary string) error
	DeleteCreatedBefore(cutoff time.Time) (int64, error)
}

type emailSummaryRepository struct {
	db *gorm.DB
}

func NewEmailSummaryRepository(db *gorm.DB) EmailSummaryRepository {
	return &emailSummaryRepository{
		db: db,
	}
}

func (r *emailSummaryRepository) GetSummary(accountID, emailID string) (*emaildomain.EmailSummary, error) {
	var summary emaildomain.EmailSummary
	err := r.db.Where("account_id = ? AND email_id = ?", accountID, emailID).First(&summary).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

// GetSummaries returns a map of emailID -> summary
func (r *emailSummaryRepository) GetSummaries(accountID string, emailIDs []string) (map[string]string, error) {
	if len(emailIDs) == 0 {
		return map[string]string{}, nil
	}

	var summaries []emaildomain.EmailSummary
	err := r.db.Where("account_id = ? AND email_id IN ?", accountID, emailIDs).Find(&summaries).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(summaries))
	for _, s := range summaries {
		result[s.EmailID] = s.Summary
	}
	return result, nil
}

func (r *emailSummaryRepository) SaveSummary(accountID, emailID, summaryText string) error {
	var existing emaildomain.EmailSummary
	err := r.db.Where("account_id = ? AND email_id = ?", accountID, emailID).First(&existing).Error

	now := time.Now()
	if err == gorm.ErrRecordNotFound {
		summary := emaildomain.EmailSummary{
			ID:        uuid.New().String(),
			AccountID: accountID,
			EmailID:   emailID,
			Summary:   summaryText,
			CreatedAt: now,
		}
		return r.db.Create(&summary).Error
	} else if err != nil {
		return err
	}

	existing.Summary = summaryText
	existing.CreatedAt = now
	return r.db.Save(&existing).Error
}

func (r *emailSummaryRepository) DeleteCreatedBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&emaildomain.EmailSummary{})
	return res.RowsAffected, res.Error
}
