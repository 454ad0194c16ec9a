package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	authdomain "ema-backend/internal/auth/domain"
	authdto "ema-backend/internal/auth/dto"
	"ema-backend/internal/auth/repository"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/config"
	"ema-backend/pkg/contacts"
	"ema-backend/pkg/crypto"
	"ema-backend/pkg/imap"
	"ema-backend/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrAccountMissing = errors.New("account not found")
)

// ProfileLookupFunc resolves the signed-in user's name and address.
type ProfileLookupFunc func(ctx context.Context, ts oauth2.TokenSource) (emaildomain.Contact, error)

// IMAPVerifyFunc checks that the credentials can open the mailbox.
type IMAPVerifyFunc func(ctx context.Context, email, password string) error

type authUsecase struct {
	accountRepo repository.AccountRepository
	sealer      *crypto.Sealer
	config      *config.Config
	log         zerolog.Logger

	lookupProfile ProfileLookupFunc
	verifyIMAP    IMAPVerifyFunc
	now           func() time.Time
}

func NewAuthUsecase(accountRepo repository.AccountRepository, sealer *crypto.Sealer, cfg *config.Config, log zerolog.Logger) AuthUsecase {
	return &authUsecase{
		accountRepo: accountRepo,
		sealer:      sealer,
		config:      cfg,
		log:         logger.Component(log, "AuthUsecase"),
		lookupProfile: func(ctx context.Context, ts oauth2.TokenSource) (emaildomain.Contact, error) {
			svc, err := contacts.NewService(ctx, ts)
			if err != nil {
				return emaildomain.Contact{}, err
			}
			return svc.Profile(ctx)
		},
		verifyIMAP: func(ctx context.Context, email, password string) error {
			return imap.NewService(cfg.IMAPHost, cfg.IMAPPort, cfg.SMTPHost, cfg.SMTPPort, email, password).Verify(ctx)
		},
		now: time.Now,
	}
}

func (u *authUsecase) GoogleSignIn(ctx context.Context, req *authdto.GoogleSignInRequest) (*authdto.SessionResponse, error) {
	token := &oauth2.Token{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    "Bearer",
	}
	if req.ExpiresIn > 0 {
		token.Expiry = u.now().Add(time.Duration(req.ExpiresIn) * time.Second)
	}

	profile, err := u.lookupProfile(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Google profile: %w", err)
	}
	if profile.Email == "" {
		return nil, errors.New("google profile has no email address")
	}

	access, err := u.sealer.Seal(token.AccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := u.sealer.Seal(token.RefreshToken)
	if err != nil {
		return nil, err
	}

	account, err := u.accountRepo.FindByEmail(profile.Email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &authdomain.Account{
			Email:        profile.Email,
			Name:         profile.Name,
			Provider:     authdomain.ProviderGoogle,
			AccessToken:  access,
			RefreshToken: refresh,
			TokenExpiry:  token.Expiry,
		}
		if err := u.accountRepo.Create(account); err != nil {
			return nil, err
		}
	} else {
		account.Name = profile.Name
		account.Provider = authdomain.ProviderGoogle
		account.AccessToken = access
		// Google omits the refresh token on repeat consent.
		if token.RefreshToken != "" {
			account.RefreshToken = refresh
		}
		account.TokenExpiry = token.Expiry
		if err := u.accountRepo.Update(account); err != nil {
			return nil, err
		}
	}

	u.log.Info().Str("account_id", account.ID).Msg("google account signed in")
	return u.newSession(account)
}

func (u *authUsecase) IMAPSignIn(ctx context.Context, req *authdto.IMAPSignInRequest) (*authdto.SessionResponse, error) {
	if err := u.verifyIMAP(ctx, req.Email, req.Password); err != nil {
		return nil, fmt.Errorf("failed to log in to mailbox: %w", err)
	}

	sealed, err := u.sealer.Seal(req.Password)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.Split(req.Email, "@")[0]
	}

	account, err := u.accountRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &authdomain.Account{
			Email:        req.Email,
			Name:         name,
			Provider:     authdomain.ProviderIMAP,
			IMAPPassword: sealed,
		}
		if err := u.accountRepo.Create(account); err != nil {
			return nil, err
		}
	} else {
		account.Name = name
		account.Provider = authdomain.ProviderIMAP
		account.IMAPPassword = sealed
		if err := u.accountRepo.Update(account); err != nil {
			return nil, err
		}
	}

	u.log.Info().Str("account_id", account.ID).Msg("imap account signed in")
	return u.newSession(account)
}

func (u *authUsecase) newSession(account *authdomain.Account) (*authdto.SessionResponse, error) {
	sessionID := uuid.New().String()
	now := u.now()
	claims := jwt.MapClaims{
		"account_id": account.ID,
		"session_id": sessionID,
		"exp":        now.Add(u.config.JWTSessionExpiry).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(u.config.JWTSecret))
	if err != nil {
		return nil, err
	}
	return &authdto.SessionResponse{
		Token:     signed,
		SessionID: sessionID,
		Account:   account,
	}, nil
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(u.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	accountID, _ := claims["account_id"].(string)
	sessionID, _ := claims["session_id"].(string)
	if accountID == "" || sessionID == "" {
		return nil, ErrInvalidToken
	}

	account, err := u.accountRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountMissing
	}

	return &authdomain.Session{ID: sessionID, Account: account}, nil
}
