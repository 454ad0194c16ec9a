package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN_SEAL_KEY", "")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg := Load()
	require.NotNil(t, cfg)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 2*time.Second, cfg.CacheLookupTimeout)
	assert.Equal(t, "s3cret", cfg.TokenSealKey)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_LOOKUP_TIMEOUT", "500ms")
	t.Setenv("SUMMARY_WORKERS", "7")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.CacheLookupTimeout)
	assert.Equal(t, 7, cfg.SummaryWorkers)
}

func TestLocation(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, time.Local, cfg.Location())

	cfg.CalendarTimezone = "UTC"
	assert.Equal(t, "UTC", cfg.Location().String())

	cfg.CalendarTimezone = "Not/AZone"
	assert.Equal(t, time.Local, cfg.Location())
}
