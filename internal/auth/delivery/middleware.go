package delivery

import (
	"net/http"
	"strings"

	authdomain "ema-backend/internal/auth/domain"
	"ema-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

const (
	AccountKey = "account"
	SessionKey = "sessionID"
)

func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
				c.Abort()
				return
			}
			token = parts[1]
		} else {
			// EventSource cannot set headers.
			token = c.Query("token")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		session, err := authUsecase.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(AccountKey, session.Account)
		c.Set(SessionKey, session.ID)
		c.Next()
	}
}

// CurrentAccount returns the account placed in the context by AuthMiddleware.
func CurrentAccount(c *gin.Context) *authdomain.Account {
	v, ok := c.Get(AccountKey)
	if !ok {
		return nil
	}
	account, _ := v.(*authdomain.Account)
	return account
}

func CurrentSession(c *gin.Context) string {
	return c.GetString(SessionKey)
}
