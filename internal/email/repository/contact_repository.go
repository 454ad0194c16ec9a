package repository

import (
	"strings"
	"time"

	emaildomain "ema-backend/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContactRepository is the per-account contact directory.
type ContactRepository interface {
	// Upsert stores contacts; the latest name for an address wins. An empty
	// name never overwrites a known one.
	Upsert(contacts []emaildomain.Contact) error
	SearchByName(accountID, name string) ([]emaildomain.Contact, error)
	SearchByEmail(accountID, partial string) ([]emaildomain.Contact, error)
	List(accountID string) ([]emaildomain.Contact, error)
}

type contactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Upsert(contacts []emaildomain.Contact) error {
	now := time.Now()
	for _, c := range contacts {
		c.Email = strings.ToLower(strings.TrimSpace(c.Email))
		if c.Email == "" {
			continue
		}
		c.UpdatedAt = now
		columns := []string{"source", "updated_at"}
		if strings.TrimSpace(c.Name) != "" {
			columns = append(columns, "name")
		}
		err := r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "email"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(&c).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *contactRepository) SearchByName(accountID, name string) ([]emaildomain.Contact, error) {
	var contacts []emaildomain.Contact
	pattern := "%" + strings.ToLower(strings.TrimSpace(name)) + "%"
	err := r.db.Where("account_id = ? AND LOWER(name) LIKE ?", accountID, pattern).
		Order("updated_at DESC").Find(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *contactRepository) SearchByEmail(accountID, partial string) ([]emaildomain.Contact, error) {
	var contacts []emaildomain.Contact
	pattern := "%" + strings.ToLower(strings.TrimSpace(partial)) + "%"
	err := r.db.Where("account_id = ? AND email LIKE ?", accountID, pattern).
		Order("updated_at DESC").Find(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *contactRepository) List(accountID string) ([]emaildomain.Contact, error) {
	var contacts []emaildomain.Contact
	if err := r.db.Where("account_id = ?", accountID).Order("name").Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}
