package repository

import (
	"errors"
	"strings"
	"time"

	authdomain "ema-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) Create(account *authdomain.Account) error {
	account.ID = uuid.New().String()
	account.Email = strings.ToLower(account.Email)
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()
	return r.db.Create(account).Error
}

func (r *accountRepository) FindByEmail(email string) (*authdomain.Account, error) {
	var account authdomain.Account
	err := r.db.Where("email = ?", strings.ToLower(email)).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByID(id string) (*authdomain.Account, error) {
	var account authdomain.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Update(account *authdomain.Account) error {
	account.UpdatedAt = time.Now()
	return r.db.Save(account).Error
}

func (r *accountRepository) List() ([]*authdomain.Account, error) {
	var accounts []*authdomain.Account
	if err := r.db.Order("created_at").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
