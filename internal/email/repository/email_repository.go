package repository

import (
	"time"

	emaildomain "ema-backend/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmailRepository is the raw email cache.
type EmailRepository interface {
	// SaveEmails replaces each email wholesale, keyed by (account, id).
	SaveEmails(emails []*emaildomain.Email) error
	// ListRecent returns emails received at or after since, newest first.
	ListRecent(accountID string, since time.Time, limit int) ([]*emaildomain.Email, error)
	GetByIDs(accountID string, ids []string) ([]*emaildomain.Email, error)
	FindByID(accountID, id string) (*emaildomain.Email, error)
	// DeleteFetchedBefore evicts emails fetched before cutoff.
	DeleteFetchedBefore(cutoff time.Time) (int64, error)
}

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{db: db}
}

func (r *emailRepository) SaveEmails(emails []*emaildomain.Email) error {
	if len(emails) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&emails).Error
}

func (r *emailRepository) ListRecent(accountID string, since time.Time, limit int) ([]*emaildomain.Email, error) {
	var emails []*emaildomain.Email
	q := r.db.Where("account_id = ?", accountID)
	if !since.IsZero() {
		q = q.Where("internal_date >= ?", since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("internal_date DESC").Find(&emails).Error; err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *emailRepository) GetByIDs(accountID string, ids []string) ([]*emaildomain.Email, error) {
	if len(ids) == 0 {
		return []*emaildomain.Email{}, nil
	}
	var emails []*emaildomain.Email
	err := r.db.Where("account_id = ? AND id IN ?", accountID, ids).Find(&emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *emailRepository) FindByID(accountID, id string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.Where("account_id = ? AND id = ?", accountID, id).First(&email).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) DeleteFetchedBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("fetched_at < ?", cutoff).Delete(&emaildomain.Email{})
	return res.RowsAffected, res.Error
}
