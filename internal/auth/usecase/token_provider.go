package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	authdomain "ema-backend/internal/auth/domain"
	"ema-backend/internal/auth/repository"
	calendarusecase "ema-backend/internal/calendar/usecase"
	emaildomain "ema-backend/internal/email/domain"
	emailusecase "ema-backend/internal/email/usecase"
	"ema-backend/pkg/config"
	"ema-backend/pkg/contacts"
	"ema-backend/pkg/crypto"
	"ema-backend/pkg/gcal"
	"ema-backend/pkg/gmail"
	"ema-backend/pkg/imap"
	"ema-backend/pkg/logger"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNotSupported is returned when the account's provider has no such service.
var ErrNotSupported = errors.New("service not available for this account")

// TokenUpdateFunc persists a token the oauth2 library refreshed.
type TokenUpdateFunc func(token *oauth2.Token) error

type notifyTokenSource struct {
	mu       sync.Mutex
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
	log      zerolog.Logger
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist refreshed token")
		}
	}
	return t, nil
}

// Connector builds per-account service adapters from stored credentials.
type Connector struct {
	accountRepo repository.AccountRepository
	sealer      *crypto.Sealer
	config      *config.Config
	oauth       *oauth2.Config
	log         zerolog.Logger
}

func NewConnector(accountRepo repository.AccountRepository, sealer *crypto.Sealer, cfg *config.Config, log zerolog.Logger) *Connector {
	return &Connector{
		accountRepo: accountRepo,
		sealer:      sealer,
		config:      cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
		},
		log: logger.Component(log, "Connector"),
	}
}

func (c *Connector) account(accountID string) (*authdomain.Account, error) {
	account, err := c.accountRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountMissing
	}
	return account, nil
}

func (c *Connector) tokenSource(ctx context.Context, account *authdomain.Account) (oauth2.TokenSource, error) {
	access, err := c.sealer.Open(account.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to open access token: %w", err)
	}
	refresh, err := c.sealer.Open(account.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to open refresh token: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       account.TokenExpiry,
	}
	accountID := account.ID
	return &notifyTokenSource{
		src:      c.oauth.TokenSource(ctx, token),
		current:  token,
		callback: func(t *oauth2.Token) error { return c.saveToken(accountID, t) },
		log:      c.log,
	}, nil
}

func (c *Connector) saveToken(accountID string, token *oauth2.Token) error {
	account, err := c.accountRepo.FindByID(accountID)
	if err != nil || account == nil {
		return err
	}
	if account.AccessToken, err = c.sealer.Seal(token.AccessToken); err != nil {
		return err
	}
	if token.RefreshToken != "" {
		if account.RefreshToken, err = c.sealer.Seal(token.RefreshToken); err != nil {
			return err
		}
	}
	account.TokenExpiry = token.Expiry
	return c.accountRepo.Update(account)
}

func (c *Connector) imapService(account *authdomain.Account) (*imap.Service, error) {
	password, err := c.sealer.Open(account.IMAPPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to open mailbox password: %w", err)
	}
	return imap.NewService(c.config.IMAPHost, c.config.IMAPPort, c.config.SMTPHost, c.config.SMTPPort, account.Email, password), nil
}

// Mail returns the mail adapter for the account's provider.
func (c *Connector) Mail(ctx context.Context, accountID string) (emailusecase.MailService, error) {
	account, err := c.account(accountID)
	if err != nil {
		return nil, err
	}
	if account.Provider == authdomain.ProviderIMAP {
		return c.imapService(account)
	}
	ts, err := c.tokenSource(ctx, account)
	if err != nil {
		return nil, err
	}
	return gmail.NewService(ctx, ts)
}

// Gmail returns the Gmail adapter; IMAP accounts have none.
func (c *Connector) Gmail(ctx context.Context, accountID string) (*gmail.Service, error) {
	account, err := c.account(accountID)
	if err != nil {
		return nil, err
	}
	if account.Provider != authdomain.ProviderGoogle {
		return nil, ErrNotSupported
	}
	ts, err := c.tokenSource(ctx, account)
	if err != nil {
		return nil, err
	}
	return gmail.NewService(ctx, ts)
}

func (c *Connector) Calendar(ctx context.Context, accountID string) (calendarusecase.CalendarService, error) {
	account, err := c.account(accountID)
	if err != nil {
		return nil, err
	}
	if account.Provider != authdomain.ProviderGoogle {
		return nil, ErrNotSupported
	}
	ts, err := c.tokenSource(ctx, account)
	if err != nil {
		return nil, err
	}
	return gcal.NewService(ctx, ts, c.config.Location())
}

func (c *Connector) Contacts(ctx context.Context, accountID string) (emailusecase.ContactsService, error) {
	account, err := c.account(accountID)
	if err != nil {
		return nil, err
	}
	if account.Provider != authdomain.ProviderGoogle {
		return accountProfile{account: account}, nil
	}
	ts, err := c.tokenSource(ctx, account)
	if err != nil {
		return nil, err
	}
	return contacts.NewService(ctx, ts)
}

// ForceReauthenticate expires the cached access token so the next adapter
// built for the account refreshes it with the stored refresh token.
func (c *Connector) ForceReauthenticate(ctx context.Context, accountID string) error {
	account, err := c.account(accountID)
	if err != nil {
		return err
	}
	if account.Provider != authdomain.ProviderGoogle {
		return ErrNotSupported
	}
	if account.RefreshToken == "" {
		return errors.New("no refresh token stored; sign in again")
	}
	account.TokenExpiry = time.Now().Add(-time.Minute)
	c.log.Info().Str("account_id", accountID).Msg("forcing token refresh")
	return c.accountRepo.Update(account)
}

// AccountIDs lists every stored account.
func (c *Connector) AccountIDs(ctx context.Context) ([]string, error) {
	accounts, err := c.accountRepo.List()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// Profile is the sender identity used when composing mail.
func (c *Connector) Profile(ctx context.Context, accountID string) (emaildomain.Contact, error) {
	account, err := c.account(accountID)
	if err != nil {
		return emaildomain.Contact{}, err
	}
	return emaildomain.Contact{AccountID: account.ID, Email: account.Email, Name: account.Name}, nil
}

// accountProfile serves contacts for providers without a directory API.
type accountProfile struct {
	account *authdomain.Account
}

func (p accountProfile) ListConnections(ctx context.Context) ([]emaildomain.Contact, error) {
	return nil, nil
}

func (p accountProfile) Profile(ctx context.Context) (emaildomain.Contact, error) {
	return emaildomain.Contact{Email: p.account.Email, Name: p.account.Name}, nil
}
