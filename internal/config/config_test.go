package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("STORE", "")
	t.Setenv("BCRYPT_COST", "")
	t.Setenv("RATE_LIMIT", "")
	t.Setenv("LOGIN_RATE_LIMIT", "")
	t.Setenv("RATE_WINDOW", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Contains(t, cfg.ConnString(), "sslmode=disable")
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, 10, cfg.LoginRateLimit)
	assert.Equal(t, 15*time.Minute, cfg.RateWindow)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/x")
	t.Setenv("STORE", "Memory")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("RATE_LIMIT", "0")
	t.Setenv("LOGIN_RATE_LIMIT", "3")
	t.Setenv("RATE_WINDOW", "1m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "postgres://u:p@db/x", cfg.ConnString())
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 0, cfg.RateLimit)
	assert.Equal(t, 3, cfg.LoginRateLimit)
	assert.Equal(t, time.Minute, cfg.RateWindow)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE", "redis")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("STORE", "memory")
	t.Setenv("BCRYPT_COST", "99")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("BCRYPT_COST", "")
	t.Setenv("RATE_LIMIT", "-1")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("RATE_LIMIT", "")
	t.Setenv("RATE_WINDOW", "0s")
	_, err = Load()
	assert.Error(t, err)
}
