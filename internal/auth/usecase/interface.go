package usecase

import (
	"context"

	authdomain "ema-backend/internal/auth/domain"
	authdto "ema-backend/internal/auth/dto"
)

// AuthUsecase signs accounts in and resolves bearer tokens to sessions.
type AuthUsecase interface {
	GoogleSignIn(ctx context.Context, req *authdto.GoogleSignInRequest) (*authdto.SessionResponse, error)
	IMAPSignIn(ctx context.Context, req *authdto.IMAPSignInRequest) (*authdto.SessionResponse, error)
	ValidateToken(tokenString string) (*authdomain.Session, error)
}
