package ratelimit

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hardbanrecords/hardban-lab/internal/config"
)

// ErrInvalidPolicy is returned when a limit has a non-positive window or max.
var ErrInvalidPolicy = errors.New("invalid rate limit policy")

type (
	// Config holds the rate limiting settings of the service.
	Config struct {
		Environment config.Environment

		RedisURL      string
		RedisPassword string
		// RedisDB is set only when REDIS_DB is; nil keeps the database in RedisURL.
		RedisDB *int

		Classes map[Class]Limit
		Tiers   map[Tier]Limit

		// PolicyFile is an optional YAML file overriding class and tier limits.
		PolicyFile string

		MemoryCleanupInterval time.Duration
		MemoryMaxKeys         int
	}

	// policyFile is the YAML layout of RATE_LIMIT_POLICY_FILE:
	//
	//	classes:
	//	  upload: {window: 30m, max: 10}
	//	tiers:
	//	  premium: {window: 15m, max: 3000}
	policyFile struct {
		Classes map[Class]Limit `yaml:"classes"`
		Tiers   map[Tier]Limit  `yaml:"tiers"`
	}
)

// LoadConfig reads rate limit settings from the environment.
//
// Limits resolve in order: built-in defaults, then the policy file, then
// RATE_LIMIT_<CLASS>_WINDOW_MS and RATE_LIMIT_<CLASS>_MAX.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment:           config.LoadEnvironment(),
		RedisURL:              config.GetEnvStr("REDIS_URL", ""),
		RedisPassword:         config.GetEnvStr("REDIS_PASSWORD", ""),
		Classes:               DefaultLimits(),
		Tiers:                 DefaultTierLimits(),
		PolicyFile:            config.GetEnvStr("RATE_LIMIT_POLICY_FILE", ""),
		MemoryCleanupInterval: config.GetEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", defaultCleanupInterval),
		MemoryMaxKeys:         config.GetEnvInt("RATE_LIMIT_MEMORY_MAX_KEYS", defaultMaxKeys),
	}

	if db, ok := config.LookupEnvInt("REDIS_DB"); ok {
		cfg.RedisDB = &db
	}

	if cfg.PolicyFile != "" {
		if err := cfg.applyPolicyFile(cfg.PolicyFile); err != nil {
			return nil, err
		}
	}

	for _, class := range Classes() {
		prefix := "RATE_LIMIT_" + strings.ToUpper(string(class))
		limit := cfg.Classes[class]

		limit.Window = config.GetEnvMillis(prefix+"_WINDOW_MS", limit.Window)
		limit.Max = config.GetEnvInt64(prefix+"_MAX", limit.Max)

		cfg.Classes[class] = limit
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every limit has a positive window and max.
func (c *Config) Validate() error {
	for class, limit := range c.Classes {
		if err := validateLimit(string(class), limit); err != nil {
			return err
		}
	}

	for tier, limit := range c.Tiers {
		if err := validateLimit("tier "+string(tier), limit); err != nil {
			return err
		}
	}

	if c.RedisDB != nil && *c.RedisDB < 0 {
		return fmt.Errorf("%w: REDIS_DB must be >= 0, got %d", ErrInvalidPolicy, *c.RedisDB)
	}

	return nil
}

// UsesRedis reports whether a shared store is configured.
func (c *Config) UsesRedis() bool {
	return c.RedisURL != ""
}

func (c *Config) applyPolicyFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return fmt.Errorf("read rate limit policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse rate limit policy file %s: %w", path, err)
	}

	for class, limit := range file.Classes {
		c.Classes[class] = mergeLimit(c.Classes[class], limit)
	}

	for tier, limit := range file.Tiers {
		c.Tiers[tier] = mergeLimit(c.Tiers[tier], limit)
	}

	return nil
}

// mergeLimit overlays the set fields of override onto base.
func mergeLimit(base, override Limit) Limit {
	if override.Window > 0 {
		base.Window = override.Window
	}

	if override.Max > 0 {
		base.Max = override.Max
	}

	return base
}

func validateLimit(name string, limit Limit) error {
	if limit.Window <= 0 {
		return fmt.Errorf("%w: %s window must be positive, got %s", ErrInvalidPolicy, name, limit.Window)
	}

	if limit.Max <= 0 {
		return fmt.Errorf("%w: %s max must be positive, got %d", ErrInvalidPolicy, name, limit.Max)
	}

	return nil
}
