package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"IMPORT_DEFAULT_CURRENCY", "IMPORT_MAX_CONTENT_BYTES", "INBOX_SCHEDULE", "INBOX_FILES_PER_SECOND", "METRICS_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.Import.DefaultCurrency)
	assert.Equal(t, int64(10<<20), cfg.Import.MaxContentBytes)
	assert.Equal(t, "*/5 * * * *", cfg.Inbox.Schedule)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "localhost", Port: 5469, User: "postgres", Password: "postgres", Database: "echo-dev", SSLMode: "disable"}
	assert.Equal(t, "host=localhost port=5469 user=postgres password=postgres dbname=echo-dev sslmode=disable", c.DSN())

	c.URL = "postgres://u:p@db:5432/echo"
	assert.Equal(t, "postgres://u:p@db:5432/echo", c.DSN())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IMPORT_DEFAULT_CURRENCY", "gbp")
	t.Setenv("IMPORT_MAX_CONTENT_BYTES", "2048")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/echo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "GBP", cfg.Import.DefaultCurrency)
	assert.Equal(t, int64(2048), cfg.Import.MaxContentBytes)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, "postgres://u:p@db:5432/echo", cfg.Database.DSN())
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IMPORT_DEFAULT_CURRENCY", "EURO")
	t.Setenv("IMPORT_MAX_CONTENT_BYTES", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMPORT_MAX_CONTENT_BYTES")
	assert.Contains(t, err.Error(), "IMPORT_DEFAULT_CURRENCY")
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvAsInt("CFG_TEST_INT", 7))

	t.Setenv("CFG_TEST_BOOL", "true")
	assert.True(t, getEnvAsBool("CFG_TEST_BOOL", false))

	t.Setenv("CFG_TEST_FLOAT", "0.5")
	assert.InDelta(t, 0.5, getEnvAsFloat("CFG_TEST_FLOAT", 1), 1e-9)
}
