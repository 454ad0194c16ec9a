package delivery

import (
	"net/http"

	authdto "ema-backend/internal/auth/dto"
	"ema-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

// SignInHook runs after a successful sign-in, e.g. to bootstrap caches.
type SignInHook func(accountID, sessionID string)

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	onSignIn    SignInHook
}

func NewAuthHandler(authUsecase usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase}
}

func (h *AuthHandler) SetSignInHook(hook SignInHook) {
	h.onSignIn = hook
}

func (h *AuthHandler) GoogleSignIn(c *gin.Context) {
	var req authdto.GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.authUsecase.GoogleSignIn(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	h.signedIn(resp)
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) IMAPSignIn(c *gin.Context) {
	var req authdto.IMAPSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.authUsecase.IMAPSignIn(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	h.signedIn(resp)
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"account":    CurrentAccount(c),
		"session_id": CurrentSession(c),
	})
}

func (h *AuthHandler) signedIn(resp *authdto.SessionResponse) {
	if h.onSignIn != nil && resp.Account != nil {
		h.onSignIn(resp.Account.ID, resp.SessionID)
	}
}
