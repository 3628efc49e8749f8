package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Port           string
	ContentFile    string
	UploadDir      string
	PublicDir      string
	MaxUploadBytes int64

	StoreDriver string
	DBPath      string
	DatabaseURL string

	RedisURL     string
	RedisChannel string

	WatchContentFile bool
	AuthSecret       string
	AllowedOrigins   []string

	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	LogLevel  slog.Level
	LogFormat string
	GinMode   string
}

// LoadConfig reads .env (if present) and the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", slog.String("error", err.Error()))
	}

	cfg := &Config{
		Port:         getEnv("PORT", "3000"),
		ContentFile:  getEnv("CONTENT_FILE", "./content-data.json"),
		UploadDir:    getEnv("UPLOAD_DIR", "./public/uploads"),
		PublicDir:    getEnv("PUBLIC_DIR", "./public"),
		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", StoreFile)),
		DBPath:       getEnv("DB_PATH", "./noticeboard.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "noticeboard:broadcast"),
		AuthSecret:   getEnv("AUTH_SECRET", ""),
		LogFormat:    strings.ToLower(getEnv("LOG_FORMAT", "text")),
		GinMode:      getEnv("GIN_MODE", "release"),
	}

	var err error
	if cfg.MaxUploadBytes, err = getEnvInt64("MAX_UPLOAD_BYTES", 50<<20); err != nil {
		return nil, err
	}
	if cfg.WatchContentFile, err = getEnvBool("WATCH_CONTENT_FILE", false); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getEnvDuration("WRITE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS", "*"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreFile, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER: unsupported value %q, expected file, sqlite or postgres", c.StoreDriver)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT: unsupported value %q, expected json or text", c.LogFormat)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("WRITE_TIMEOUT must be positive")
	}
	if c.WatchContentFile && c.StoreDriver != StoreFile {
		return fmt.Errorf("WATCH_CONTENT_FILE only applies to STORE_DRIVER=file")
	}
	return nil
}

// DSN is the connection string for a SQL store driver.
func (c *Config) DSN(driver string) string {
	if driver == StorePostgres {
		return c.DatabaseURL
	}
	return c.DBPath
}

// SetupLogger installs the process-wide slog logger.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported level %q, expected debug, info, warn or error", level)
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
