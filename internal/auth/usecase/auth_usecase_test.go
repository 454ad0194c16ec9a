package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	authdomain "ema-backend/internal/auth/domain"
	authdto "ema-backend/internal/auth/dto"
	"ema-backend/internal/auth/repository"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/config"
	"ema-backend/pkg/crypto"
	"ema-backend/pkg/database"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestAuth(t *testing.T) (*authUsecase, repository.AccountRepository) {
	t.Helper()
	db, err := database.NewInMemory("auth_" + uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.Account{}))

	repo := repository.NewAccountRepository(db)
	cfg := &config.Config{JWTSecret: "test-secret", JWTSessionExpiry: time.Hour}
	uc := NewAuthUsecase(repo, crypto.NewSealer("seal"), cfg, zerolog.Nop()).(*authUsecase)
	uc.lookupProfile = func(ctx context.Context, ts oauth2.TokenSource) (emaildomain.Contact, error) {
		tok, err := ts.Token()
		if err != nil {
			return emaildomain.Contact{}, err
		}
		if tok.AccessToken != "good" {
			return emaildomain.Contact{}, errors.New("unauthorized")
		}
		return emaildomain.Contact{Email: "Me@Example.com", Name: "Me"}, nil
	}
	uc.verifyIMAP = func(ctx context.Context, email, password string) error {
		if password != "pw" {
			return errors.New("bad credentials")
		}
		return nil
	}
	return uc, repo
}

func TestGoogleSignInIssuesSession(t *testing.T) {
	uc, repo := newTestAuth(t)
	ctx := context.Background()

	resp, err := uc.GoogleSignIn(ctx, &authdto.GoogleSignInRequest{AccessToken: "good", RefreshToken: "r1", ExpiresIn: 3600})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "me@example.com", resp.Account.Email)

	stored, err := repo.FindByID(resp.Account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "good", stored.AccessToken, "tokens are sealed at rest")

	session, err := uc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, session.ID)
	assert.Equal(t, resp.Account.ID, session.Account.ID)
}

func TestGoogleSignInKeepsRefreshTokenOnRepeatConsent(t *testing.T) {
	uc, repo := newTestAuth(t)
	ctx := context.Background()
	sealer := crypto.NewSealer("seal")

	first, err := uc.GoogleSignIn(ctx, &authdto.GoogleSignInRequest{AccessToken: "good", RefreshToken: "r1"})
	require.NoError(t, err)
	second, err := uc.GoogleSignIn(ctx, &authdto.GoogleSignInRequest{AccessToken: "good"})
	require.NoError(t, err)
	assert.Equal(t, first.Account.ID, second.Account.ID)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	stored, err := repo.FindByID(first.Account.ID)
	require.NoError(t, err)
	refresh, err := sealer.Open(stored.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "r1", refresh)
}

func TestGoogleSignInRejectsBadToken(t *testing.T) {
	uc, _ := newTestAuth(t)
	_, err := uc.GoogleSignIn(context.Background(), &authdto.GoogleSignInRequest{AccessToken: "bad"})
	assert.Error(t, err)
}

func TestIMAPSignIn(t *testing.T) {
	uc, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := uc.IMAPSignIn(ctx, &authdto.IMAPSignInRequest{Email: "bob@mail.test", Password: "nope"})
	assert.Error(t, err)

	resp, err := uc.IMAPSignIn(ctx, &authdto.IMAPSignInRequest{Email: "bob@mail.test", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, authdomain.ProviderIMAP, resp.Account.Provider)
	assert.Equal(t, "bob", resp.Account.Name)
}

func TestValidateTokenRejects(t *testing.T) {
	uc, _ := newTestAuth(t)

	_, err := uc.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": "a", "session_id": "s", "exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = uc.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	orphan := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": "missing", "session_id": "s", "exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err = orphan.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = uc.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrAccountMissing)
}

func TestForceReauthenticateExpiresToken(t *testing.T) {
	uc, repo := newTestAuth(t)
	ctx := context.Background()
	resp, err := uc.GoogleSignIn(ctx, &authdto.GoogleSignInRequest{AccessToken: "good", RefreshToken: "r1", ExpiresIn: 3600})
	require.NoError(t, err)

	conn := NewConnector(repo, crypto.NewSealer("seal"), &config.Config{}, zerolog.Nop())
	require.NoError(t, conn.ForceReauthenticate(ctx, resp.Account.ID))

	stored, err := repo.FindByID(resp.Account.ID)
	require.NoError(t, err)
	assert.True(t, stored.TokenExpiry.Before(time.Now()))

	ids, err := conn.AccountIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{resp.Account.ID}, ids)

	assert.ErrorIs(t, conn.ForceReauthenticate(ctx, "missing"), ErrAccountMissing)
}

func TestConnectorIMAPAccounts(t *testing.T) {
	uc, repo := newTestAuth(t)
	ctx := context.Background()
	resp, err := uc.IMAPSignIn(ctx, &authdto.IMAPSignInRequest{Email: "bob@mail.test", Password: "pw", Name: "Bob"})
	require.NoError(t, err)

	conn := NewConnector(repo, crypto.NewSealer("seal"), &config.Config{IMAPHost: "imap.test", IMAPPort: 993}, zerolog.Nop())

	_, err = conn.Calendar(ctx, resp.Account.ID)
	assert.ErrorIs(t, err, ErrNotSupported)

	contactsSvc, err := conn.Contacts(ctx, resp.Account.ID)
	require.NoError(t, err)
	profile, err := contactsSvc.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bob", profile.Name)

	mail, err := conn.Mail(ctx, resp.Account.ID)
	require.NoError(t, err)
	assert.NotNil(t, mail)
}

func TestNotifyTokenSourcePersistsRefresh(t *testing.T) {
	var saved []string
	src := &notifyTokenSource{
		src:      oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "new"}),
		current:  &oauth2.Token{AccessToken: "old"},
		callback: func(tok *oauth2.Token) error { saved = append(saved, tok.AccessToken); return nil },
		log:      zerolog.Nop(),
	}
	for i := 0; i < 3; i++ {
		_, err := src.Token()
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"new"}, saved)
}
