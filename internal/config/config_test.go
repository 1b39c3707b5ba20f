package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_USERNAME", "app")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "telemed")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "app:secret@tcp(localhost:3306)/telemed?charset=utf8mb4&parseTime=True&loc=Local", cfg.Database.DSN)
	assert.Equal(t, "INR", cfg.Razorpay.Currency)
	assert.Equal(t, 10, cfg.Razorpay.TimeoutSeconds)
	assert.Equal(t, 30, cfg.Payments.PendingTTLMinutes)
	assert.Equal(t, "@every 5m", cfg.Payments.SweepSpec)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
}

func TestLoadConfigRejectsBadNumbers(t *testing.T) {
	t.Setenv("RAZORPAY_TIMEOUT_SECONDS", "ten")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "invalid RAZORPAY_TIMEOUT_SECONDS")
}

func TestLoadConfigRejectsUnknownStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "invalid STORE_DRIVER")
}
