package repository

import (
	"time"

	emaildomain "ema-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type emailSyncHistoryRepository struct {
	db *gorm.DB
}

func NewEmailSyncHistoryRepository(db *gorm.DB) EmailSyncHistoryRepository {
	return &emailSyncHistoryRepository{
		db: db,
	}
}

func (r *emailSyncHistoryRepository) IsEmailSynced(accountID, emailID string) (bool, error) {
	var history emaildomain.EmailSyncHistory
	err := r.db.Where("account_id = ? AND email_id = ?", accountID, emailID).First(&history).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EnsureEmailSynced records the email and reports whether it was already
// recorded. Concurrent callers race on the (account, email) unique index.
func (r *emailSyncHistoryRepository) EnsureEmailSynced(accountID, emailID string) (bool, error) {
	history := emaildomain.EmailSyncHistory{
		ID:        uuid.New().String(),
		AccountID: accountID,
		EmailID:   emailID,
		SyncedAt:  time.Now(),
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "email_id"}},
		DoNothing: true,
	}).Create(&history)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 0, nil
}

func (r *emailSyncHistoryRepository) DeleteSyncHistory(accountID, emailID string) error {
	return r.db.Where("account_id = ? AND email_id = ?", accountID, emailID).Delete(&emaildomain.EmailSyncHistory{}).Error
}
