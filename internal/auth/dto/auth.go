package dto

import authdomain "ema-backend/internal/auth/domain"

// GoogleSignInRequest carries the tokens the extension obtained through
// chrome.identity.
type GoogleSignInRequest struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type IMAPSignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type SessionResponse struct {
	Token     string              `json:"token"`
	SessionID string              `json:"session_id"`
	Account   *authdomain.Account `json:"account"`
}
