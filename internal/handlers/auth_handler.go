package handlers

import (
	"net/http"
	"time"

	"eurodoor_admin/internal/apperr"
	"eurodoor_admin/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth         services.AuthService
	sessionTTL   time.Duration
	cookieSecure bool
}

func NewAuthHandler(auth services.AuthService, sessionTTL time.Duration, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		sessionTTL:   sessionTTL,
		cookieSecure: cookieSecure,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.ValidationErr("Invalid request format"))
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieSession, session.ID, int(h.sessionTTL.Seconds()), "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"session_id": session.ID,
		"email":      session.Email,
		"expires_at": session.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := currentSession(c)
	if err := h.auth.Logout(c.Request.Context(), session.ID); err != nil {
		_ = c.Error(err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieSession, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
