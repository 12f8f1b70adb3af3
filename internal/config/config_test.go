package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"BACKEND_BASE_URL", "PAGE_SIZE", "REQUEST_TIMEOUT_MS", "VIEW_TTL", "EXPORT_LOCK_TTL", "CURRENCY", "COOKIE_SECURE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "https://eurodoor-backend.onrender.com", cfg.BackendBaseURL)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Minute, cfg.ViewTTL)
	assert.Equal(t, time.Minute, cfg.ExportLockTTL)
	assert.Equal(t, "KES", cfg.Currency)
	assert.False(t, cfg.CookieSecure)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://localhost:5000/")
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("REQUEST_TIMEOUT_MS", "500")
	t.Setenv("COOKIE_SECURE", "true")

	cfg := Load()

	assert.Equal(t, "http://localhost:5000", cfg.BackendBaseURL)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 500*time.Millisecond, cfg.RequestTimeout)
	assert.True(t, cfg.CookieSecure)
}

func TestGetEnvAsInt_RejectsInvalid(t *testing.T) {
	t.Setenv("PAGE_SIZE", "zero")
	assert.Equal(t, 10, getEnvAsInt("PAGE_SIZE", 10))

	t.Setenv("PAGE_SIZE", "-4")
	assert.Equal(t, 10, getEnvAsInt("PAGE_SIZE", 10))
}
