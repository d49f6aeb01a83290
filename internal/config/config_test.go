package config

import (
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	assert.NoError(t, err)
	check.Equal(t, ":8080", cfg.HTTPAddr)
	check.Equal(t, "sqlite", cfg.DBDriver)
	check.Equal(t, time.Minute, cfg.SweepInterval)
	check.Equal(t, time.Minute, cfg.SweepLockTTL)
	check.Equal(t, 8, cfg.NotifyConcurrency)
	check.True(t, cfg.LineSingleCall)
	check.Equal(t, "", cfg.RedisAddr)
	check.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POSTGRES_URL", "postgres://localhost/estatesale?sslmode=disable")
	t.Setenv("SWEEP_INTERVAL", "15s")
	t.Setenv("LINE_SINGLE_CALL", "false")
	t.Setenv("NOTIFY_CONCURRENCY", "3")

	cfg, err := Load()
	assert.NoError(t, err)
	check.Equal(t, "postgres", cfg.DBDriver)
	check.Equal(t, 15*time.Second, cfg.SweepInterval)
	check.Equal(t, 15*time.Second, cfg.SweepLockTTL)
	check.False(t, cfg.LineSingleCall)
	check.Equal(t, 3, cfg.NotifyConcurrency)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("SWEEP_INTERVAL", "soon")

	_, err := Load()
	assert.NotNil(t, err)
	msg := err.Error()
	check.True(t, strings.Contains(msg, "JWT_SECRET"))
	check.True(t, strings.Contains(msg, "POSTGRES_URL"))
	check.True(t, strings.Contains(msg, "SWEEP_INTERVAL"))
}
