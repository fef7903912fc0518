package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"product_catalog/internal/apperr"
	"product_catalog/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator struct {
	principal model.Principal
	err       error
	seen      string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (model.Principal, error) {
	s.seen = token
	if s.err != nil {
		return model.Principal{}, s.err
	}
	return s.principal, nil
}

func newTestRouter(auth Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuthMiddleware(auth, slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.GET("/me", func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, principal)
	})
	return r
}

func TestJWTAuthMiddleware_TokenSources(t *testing.T) {
	principal := model.Principal{ID: uuid.New(), Email: "ann@example.com", Role: model.RoleUser}

	tests := []struct {
		name      string
		cookie    string
		header    string
		wantToken string
	}{
		{"cookie", "cookie-token", "", "cookie-token"},
		{"bearer header", "", "Bearer header-token", "header-token"},
		{"lowercase scheme", "", "bearer header-token", "header-token"},
		{"cookie wins", "cookie-token", "Bearer header-token", "cookie-token"},
		{"bad scheme", "", "Basic abc", ""},
		{"no token", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &stubAuthenticator{principal: principal}
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			newTestRouter(auth).ServeHTTP(w, req)

			assert.Equal(t, tt.wantToken, auth.seen)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestJWTAuthMiddleware_Rejects(t *testing.T) {
	revoked := apperr.New(apperr.KindAuthentication, "token has been revoked")
	auth := &stubAuthenticator{err: revoked}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer stale")
	w := httptest.NewRecorder()
	newTestRouter(auth).ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"token has been revoked"}`, w.Body.String())
}

func TestJWTAuthMiddleware_InternalFailure(t *testing.T) {
	auth := &stubAuthenticator{err: apperr.Internal(errors.New("db down"))}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer t")
	w := httptest.NewRecorder()
	newTestRouter(auth).ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestPrincipalFrom_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := PrincipalFrom(c)
	assert.False(t, ok)
}
