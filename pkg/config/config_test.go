package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Nzyazin/miniauthorizer/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"STORE_BACKEND", "LOG_DIR", "HTTP_ADDR", "TLS_CERT_FILE", "TLS_KEY_FILE",
		"HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "SHUTDOWN_TIMEOUT", "ENABLE_PPROF",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_LOCK_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, config.BackendPostgres, cfg.Backend)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.False(t, cfg.HTTP.TLSEnabled())
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
	assert.Equal(t, 5*time.Second, cfg.DB.LockTimeout)
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, even empty
	os.Unsetenv("DB_PORT")
	os.Unsetenv("STORE_BACKEND")
	os.Unsetenv("DB_LOCK_TIMEOUT")

	envFile := filepath.Join(t.TempDir(), "config.env")
	content := "DB_PORT=6543\nSTORE_BACKEND=memory\nDB_LOCK_TIMEOUT=250ms\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DB_PORT")
		os.Unsetenv("STORE_BACKEND")
		os.Unsetenv("DB_LOCK_TIMEOUT")
	})

	cfg, err := config.Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, 6543, cfg.DB.Port)
	assert.Equal(t, config.BackendMemory, cfg.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.DB.LockTimeout)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"DB_PORT":           "five",
		"DB_LOCK_TIMEOUT":   "soon",
		"ENABLE_PPROF":      "maybe",
		"STORE_BACKEND":     "redis",
		"HTTP_READ_TIMEOUT": "-",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := config.Load("")
			assert.Error(t, err)
		})
	}
}
