package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	TelegramToken   string
	TelegramAPIBase string

	CourseAPIBase  string
	CourseWebBase  string
	CourseFileBase string
	CourseTimezone string

	PollInterval       time.Duration
	FetchTimeout       time.Duration
	FetchMaxAttempts   int
	RestoreConcurrency int

	HTTPPort              string
	CleanupCron           string
	NotificationRetention time.Duration

	LogLevel  string
	LogFormat string

	DefaultCourseID string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DBDriver:        strings.ToLower(envOrDefault("DB_DRIVER", DriverPostgres)),
		DBHost:          envOrDefault("DB_HOST", "localhost"),
		DBPort:          envOrDefault("DB_PORT", "5432"),
		DBUser:          envOrDefault("DB_USERNAME", "postgres"),
		DBPassword:      envOrDefault("DB_PASSWORD", "postgres"),
		DBName:          envOrDefault("DB_DATABASE", "pptlinks"),
		DBSSLMode:       envOrDefault("DB_SSLMODE", "disable"),
		SQLitePath:      envOrDefault("SQLITE_PATH", "pptlinks.db"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIBase: os.Getenv("TELEGRAM_API_BASE"),
		CourseAPIBase:   os.Getenv("COURSE_API_BASE"),
		CourseWebBase:   os.Getenv("COURSE_WEB_BASE"),
		CourseFileBase:  os.Getenv("COURSE_FILE_BASE"),
		CourseTimezone:  envOrDefault("COURSE_TIMEZONE", "Africa/Lagos"),
		HTTPPort:        envOrDefault("HTTP_PORT", "3000"),
		CleanupCron:     envOrDefault("CLEANUP_CRON", "@daily"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		DefaultCourseID: os.Getenv("DEFAULT_COURSE_ID"),
	}

	var err error
	if cfg.PollInterval, err = envDuration("POLL_INTERVAL", 10*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.FetchTimeout, err = envDuration("FETCH_TIMEOUT", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.FetchMaxAttempts, err = envInt("FETCH_MAX_ATTEMPTS", 3); err != nil {
		return cfg, err
	}
	if cfg.RestoreConcurrency, err = envInt("RESTORE_CONCURRENCY", 4); err != nil {
		return cfg, err
	}
	retentionDays, err := envInt("NOTIFICATION_RETENTION_DAYS", 30)
	if err != nil {
		return cfg, err
	}
	cfg.NotificationRetention = time.Duration(retentionDays) * 24 * time.Hour

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.TelegramToken == "" {
		return errors.New("missing TELEGRAM_BOT_TOKEN")
	}

	switch c.DBDriver {
	case DriverPostgres:
		if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
			return errors.New("missing database configuration")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if c.PollInterval <= 0 || c.FetchTimeout <= 0 {
		return errors.New("POLL_INTERVAL and FETCH_TIMEOUT must be positive")
	}
	if c.FetchMaxAttempts < 1 {
		return errors.New("FETCH_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// Location is the reference timezone for upstream timestamps without an
// offset.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.CourseTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid COURSE_TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

// envDuration accepts Go durations ("90s", "10m") or a bare number of
// seconds.
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
