package storage

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/hardbanrecords/hardban-lab/internal/config"
)

const (
	defaultMaxOpenConns       = 25
	defaultMaxIdleConns       = 5
	defaultConnMaxLifetime    = 30 * time.Minute
	defaultConnMaxIdleTime    = 10 * time.Minute
	defaultConnectTimeout     = 10 * time.Second
	defaultHealthCheckTimeout = 2 * time.Second
)

var (
	// ErrDatabaseURLEmpty is returned when DATABASE_URL is unset or blank.
	ErrDatabaseURLEmpty = errors.New("database URL cannot be empty")
	// ErrInvalidPoolSize is returned when the idle pool exceeds the open pool.
	ErrInvalidPoolSize = errors.New("DATABASE_MAX_IDLE_CONNS cannot exceed DATABASE_MAX_OPEN_CONNS")

	keywordPassword = regexp.MustCompile(`(password=)('[^']*'|\S+)`) //nolint:gochecknoglobals
)

// Config holds PostgreSQL connection settings for the rights, chapter and service key stores.
type Config struct {
	databaseURL        string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	ConnectTimeout     time.Duration // bound on the initial ping in NewConnection
	HealthCheckTimeout time.Duration // bound on each HealthCheck ping
}

// LoadConfig reads DATABASE_URL and the DATABASE_* pool settings.
func LoadConfig() *Config {
	return &Config{
		databaseURL:        config.GetEnvStr("DATABASE_URL", ""),
		MaxOpenConns:       config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
		MaxIdleConns:       config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
		ConnMaxLifetime:    config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
		ConnMaxIdleTime:    config.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
		ConnectTimeout:     config.GetEnvDuration("DATABASE_CONNECT_TIMEOUT", defaultConnectTimeout),
		HealthCheckTimeout: config.GetEnvDuration("DATABASE_HEALTH_CHECK_TIMEOUT", defaultHealthCheckTimeout),
	}
}

// NewConfig returns a Config for databaseURL with default pool settings.
func NewConfig(databaseURL string) *Config {
	return &Config{
		databaseURL:        databaseURL,
		MaxOpenConns:       defaultMaxOpenConns,
		MaxIdleConns:       defaultMaxIdleConns,
		ConnMaxLifetime:    defaultConnMaxLifetime,
		ConnMaxIdleTime:    defaultConnMaxIdleTime,
		ConnectTimeout:     defaultConnectTimeout,
		HealthCheckTimeout: defaultHealthCheckTimeout,
	}
}

// Validate checks the URL and pool sizes.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.databaseURL) == "" {
		return ErrDatabaseURLEmpty
	}

	if c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns {
		return ErrInvalidPoolSize
	}

	return nil
}

// MaskDatabaseURL returns the database URL with its password replaced by "***".
// Both URL ("postgres://user:pw@host/db") and keyword ("host=x password=pw") forms
// are handled.
func (c *Config) MaskDatabaseURL() string {
	if c.databaseURL == "" {
		return ""
	}

	schemeEnd := strings.Index(c.databaseURL, "://")
	if schemeEnd == -1 {
		return keywordPassword.ReplaceAllString(c.databaseURL, "${1}***")
	}

	afterScheme := c.databaseURL[schemeEnd+3:]

	// The last @ separates userinfo from host; passwords may contain @.
	lastAt := strings.LastIndex(afterScheme, "@")
	if lastAt == -1 {
		return c.databaseURL
	}

	userInfo := afterScheme[:lastAt]

	colon := strings.Index(userInfo, ":")
	if colon == -1 || colon == len(userInfo)-1 {
		return c.databaseURL
	}

	return c.databaseURL[:schemeEnd] + "://" + userInfo[:colon] + ":***" + afterScheme[lastAt:]
}
