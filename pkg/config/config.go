package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	HTTP    HTTPConfig
	DB      DBConfig
	Backend string
	LogDir  string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TLSCertFile     string
	TLSKeyFile      string
	EnablePprof     bool
}

func (c HTTPConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	LockTimeout  time.Duration
}

// Load reads the optional env file and then the process environment. Unset
// variables fall back to defaults; malformed ones are errors.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var (
		cfg Config
		err error
	)

	cfg.Backend = getEnv("STORE_BACKEND", BackendPostgres)
	if cfg.Backend != BackendPostgres && cfg.Backend != BackendMemory {
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q", cfg.Backend)
	}
	cfg.LogDir = os.Getenv("LOG_DIR")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	cfg.HTTP.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	if cfg.HTTP.ReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 9*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTP.WriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 12*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTP.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTP.EnablePprof, err = getBool("ENABLE_PPROF", false); err != nil {
		return nil, err
	}

	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = os.Getenv("DB_PASSWORD")
	cfg.DB.Name = getEnv("DB_NAME", "authorizer")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	if cfg.DB.Port, err = getInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.DB.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 20); err != nil {
		return nil, err
	}
	if cfg.DB.MaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.DB.LockTimeout, err = getDuration("DB_LOCK_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
