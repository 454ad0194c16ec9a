package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	authdomain "ema-backend/internal/auth/domain"
	authdto "ema-backend/internal/auth/dto"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeAuth struct{}

func (fakeAuth) GoogleSignIn(ctx context.Context, req *authdto.GoogleSignInRequest) (*authdto.SessionResponse, error) {
	return nil, errors.New("unused")
}

func (fakeAuth) IMAPSignIn(ctx context.Context, req *authdto.IMAPSignInRequest) (*authdto.SessionResponse, error) {
	return nil, errors.New("unused")
}

func (fakeAuth) ValidateToken(token string) (*authdomain.Session, error) {
	if token != "valid" {
		return nil, errors.New("invalid")
	}
	return &authdomain.Session{ID: "s1", Account: &authdomain.Account{ID: "a1"}}, nil
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(fakeAuth{}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"account": CurrentAccount(c).ID, "session": CurrentSession(c)})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"malformed", "Token valid", "", http.StatusUnauthorized},
		{"invalid", "Bearer nope", "", http.StatusUnauthorized},
		{"header", "Bearer valid", "", http.StatusOK},
		{"query", "", "?token=valid", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"account":"a1","session":"s1"}`, w.Body.String())
			}
		})
	}
}
