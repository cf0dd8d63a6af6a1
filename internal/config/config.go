package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/gridsight-dev/gridsight/internal/cli/client"
	"github.com/gridsight-dev/gridsight/internal/cli/session"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP client configuration
	HTTP HTTPConfig

	// Session storage configuration
	Session session.Config

	// Logging Configuration
	Logging LoggingConfig
}

// HTTPConfig holds portal client settings
type HTTPConfig struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	timeout := client.DefaultTimeout
	if v := os.Getenv("GRIDSIGHT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid GRIDSIGHT_TIMEOUT %q: expected a positive duration like 30s", v)
		}
		timeout = d
	}

	var rateLimit float64
	if v := os.Getenv("GRIDSIGHT_RATE_LIMIT"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 {
			return nil, fmt.Errorf("invalid GRIDSIGHT_RATE_LIMIT %q", v)
		}
		rateLimit = r
	}

	driver := os.Getenv("GRIDSIGHT_SESSION_DRIVER")
	if driver == "" {
		driver = session.DriverKeyring
	}

	sessionDir := os.Getenv("GRIDSIGHT_SESSION_DIR")
	if sessionDir == "" {
		dir, err := defaultSessionDir()
		if err != nil {
			return nil, err
		}
		sessionDir = dir
	}

	redisAddr := os.Getenv("GRIDSIGHT_REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisDB := 0
	if v := os.Getenv("GRIDSIGHT_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil || db < 0 {
			return nil, fmt.Errorf("invalid GRIDSIGHT_REDIS_DB %q", v)
		}
		redisDB = db
	}

	// Logging configuration - quiet by default, commands print their own output
	logLevel := os.Getenv("GRIDSIGHT_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "warn"
	}

	logFormat := os.Getenv("GRIDSIGHT_LOG_FORMAT")
	if logFormat == "" {
		logFormat = "console"
	}

	return &Config{
		HTTP: HTTPConfig{
			Timeout:   timeout,
			RateLimit: rateLimit,
		},
		Session: session.Config{
			Driver:  driver,
			FileDir: sessionDir,
			Redis: session.RedisConfig{
				Addr:     redisAddr,
				Password: os.Getenv("GRIDSIGHT_REDIS_PASSWORD"),
				DB:       redisDB,
				Prefix:   os.Getenv("GRIDSIGHT_REDIS_PREFIX"),
			},
		},
		Logging: LoggingConfig{
			Level:  logLevel,
			Format: logFormat,
		},
	}, nil
}

func defaultSessionDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "gridsight", "sessions"), nil
}
