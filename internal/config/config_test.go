package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseAndSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "s3cret")
	_, err := Load()
	require.EqualError(t, err, "DATABASE_URL is required")

	t.Setenv("DATABASE_URL", MemoryDatabase)
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	require.EqualError(t, err, "JWT_SECRET is required")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", MemoryDatabase)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL_MINUTES", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", " , ")
	t.Setenv("PLATFORM_FEE_BPS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, 60*time.Minute, cfg.JWTTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, int64(1000), cfg.Stripe.PlatformFeeBPS)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.True(t, cfg.UsesMemoryStore())
	assert.False(t, cfg.Stripe.Enabled())
	assert.False(t, cfg.Push.Enabled())
	assert.False(t, cfg.Storage.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bounty")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("APP_BASE_URL", "https://app.example/")
	t.Setenv("STORAGE_USE_SSL", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "eur", cfg.Stripe.Currency)
	assert.Equal(t, "https://app.example", cfg.AppBaseURL)
	assert.False(t, cfg.Storage.UseSSL)
	assert.False(t, cfg.UsesMemoryStore())
}

func TestLoadRejectsFullFee(t *testing.T) {
	t.Setenv("DATABASE_URL", MemoryDatabase)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PLATFORM_FEE_BPS", "10000")

	_, err := Load()
	require.Error(t, err)
}
