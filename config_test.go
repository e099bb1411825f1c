package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"ADDR", "DB_PATH", "SECURE_COOKIES", "LOG_LEVEL", "LOG_FORMAT", "METRICS_ENABLED", "BCRYPT_COST"} {
		t.Setenv(key, "")
	}

	cfg := loadConfig()

	assert.Equal(t, Config{
		Addr:           ":8080",
		DBPath:         "blog.db",
		SecureCookies:  false,
		LogLevel:       "info",
		LogFormat:      "text",
		MetricsEnabled: true,
		BcryptCost:     bcrypt.DefaultCost,
	}, cfg)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ADDR", ":9000")
	t.Setenv("DB_PATH", "/tmp/other.db")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("BCRYPT_COST", "12")

	cfg := loadConfig()

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, 12, cfg.BcryptCost)
}

func TestLoadConfig_BadValuesFallBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SECURE_COOKIES", "maybe")
	t.Setenv("BCRYPT_COST", "lots")

	cfg := loadConfig()

	assert.False(t, cfg.SecureCookies)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "json")

	log.Info("hidden")
	log.Warn("shown", "key", "value")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "loud", "text")

	log.Debug("hidden")
	log.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}
