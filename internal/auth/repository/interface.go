package repository

import authdomain "ema-backend/internal/auth/domain"

type AccountRepository interface {
	Create(account *authdomain.Account) error
	FindByID(id string) (*authdomain.Account, error)
	FindByEmail(email string) (*authdomain.Account, error)
	Update(account *authdomain.Account) error
	List() ([]*authdomain.Account, error)
}
