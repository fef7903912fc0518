package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"product_catalog/internal/apperr"
	"product_catalog/internal/model"
	"product_catalog/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	PrincipalKey = "authPrincipal"
	// TokenCookie is the cookie carrying the session token
	TokenCookie = "token"
)

// Authenticator resolves a raw token to the principal it was issued for
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Principal, error)
}

// JWTAuthMiddleware creates a middleware for JWT authentication. The token
// is read from the token cookie, falling back to a Bearer header.
func JWTAuthMiddleware(auth Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := auth.Authenticate(c.Request.Context(), tokenFromRequest(c))
		if err != nil {
			e, ok := apperr.As(err)
			if ok && e.Kind == apperr.KindAuthentication {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": e.Message})
				return
			}
			logger.Error("authentication failed", slog.String("path", c.FullPath()), utils.ErrAttr(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie
	}

	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// PrincipalFrom returns the principal stored by JWTAuthMiddleware
func PrincipalFrom(c *gin.Context) (model.Principal, bool) {
	val, exists := c.Get(PrincipalKey)
	if !exists {
		return model.Principal{}, false
	}
	principal, ok := val.(model.Principal)
	return principal, ok
}
