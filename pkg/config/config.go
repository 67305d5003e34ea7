package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultMaxContentBytes is the largest CSV payload an import accepts (10 MiB).
const DefaultMaxContentBytes = 10 << 20

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Import        ImportConfig
	Inbox         InboxConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
	Logging       LoggingConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
	// URL overrides the individual fields when set (e.g. DATABASE_URL=postgres://...).
	URL string
}

type ImportConfig struct {
	DefaultCurrency string
	MaxContentBytes int64
	// LayoutsFile points to an optional YAML file with extra bank layouts.
	LayoutsFile string
}

type InboxConfig struct {
	Dir            string
	Schedule       string
	FilesPerSecond float64
	UserID         string
	AccountID      string
}

type StorageConfig struct {
	ArchivePath string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5469),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "echo-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns: int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			URL:      getEnv("DATABASE_URL", ""),
		},
		Import: ImportConfig{
			DefaultCurrency: strings.ToUpper(getEnv("IMPORT_DEFAULT_CURRENCY", "EUR")),
			MaxContentBytes: getEnvAsInt64("IMPORT_MAX_CONTENT_BYTES", DefaultMaxContentBytes),
			LayoutsFile:     getEnv("IMPORT_LAYOUTS_FILE", ""),
		},
		Inbox: InboxConfig{
			Dir:            getEnv("INBOX_DIR", "./inbox"),
			Schedule:       getEnv("INBOX_SCHEDULE", "*/5 * * * *"),
			FilesPerSecond: getEnvAsFloat("INBOX_FILES_PER_SECOND", 2),
			UserID:         getEnv("INBOX_USER_ID", ""),
			AccountID:      getEnv("INBOX_ACCOUNT_ID", ""),
		},
		Storage: StorageConfig{
			ArchivePath: getEnv("STORAGE_ARCHIVE_PATH", "./archive"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	var errs []error
	if c.Import.MaxContentBytes <= 0 {
		errs = append(errs, errors.New("IMPORT_MAX_CONTENT_BYTES must be positive"))
	}
	if len(c.Import.DefaultCurrency) != 3 {
		errs = append(errs, fmt.Errorf("IMPORT_DEFAULT_CURRENCY must be a 3-letter code, got %q", c.Import.DefaultCurrency))
	}
	if c.Inbox.FilesPerSecond <= 0 {
		errs = append(errs, errors.New("INBOX_FILES_PER_SECOND must be positive"))
	}
	return errors.Join(errs...)
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
