package handlers

import (
	"net/http"

	"eurodoor_admin/internal/apperr"
	"eurodoor_admin/internal/logger"
	"eurodoor_admin/internal/models"
	"eurodoor_admin/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderSession = "X-Admin-Session"
	CookieSession = "admin_session"
	ctxSession    = "admin_session"
)

// ErrorHandler renders the last error pushed with c.Error as
// {"error": message, "kind": kind}.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := apperr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			logger.FromGin(c).Error("Request failed", zap.Error(err))
		}
		c.JSON(status, gin.H{
			"error": apperr.PublicMessage(err),
			"kind":  apperr.KindOf(err),
		})
	}
}

// RequireSession rejects requests without a live admin session.
func RequireSession(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderSession)
		if id == "" {
			id, _ = c.Cookie(CookieSession)
		}
		session, err := auth.Authenticate(c.Request.Context(), id)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(ctxSession, session)
		c.Next()
	}
}

func currentSession(c *gin.Context) *models.AdminSession {
	if v, ok := c.Get(ctxSession); ok {
		if s, ok := v.(*models.AdminSession); ok {
			return s
		}
	}
	return &models.AdminSession{}
}
