package handler

import (
	"log/slog"
	"net/http"

	"product_catalog/internal/apperr"
	"product_catalog/internal/middleware"
	"product_catalog/internal/model"
	"product_catalog/internal/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error onto a status code by its kind. Only
// internal failures are logged, and their detail never reaches the client.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(err)
	}

	switch e.Kind {
	case apperr.KindValidation:
		body := gin.H{"error": e.Message}
		if len(e.Fields) > 0 {
			body["fields"] = e.Fields
		}
		c.JSON(http.StatusBadRequest, body)
	case apperr.KindAuthentication:
		c.JSON(http.StatusUnauthorized, gin.H{"error": e.Message})
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Message})
	case apperr.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": e.Message})
	default:
		logger.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			utils.ErrAttr(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// principal reads the authenticated principal; a missing one means the
// route was registered without the auth middleware.
func principal(c *gin.Context) (model.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
	return p, ok
}
