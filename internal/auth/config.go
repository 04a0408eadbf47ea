package auth

import (
	"fmt"
	"time"

	"github.com/hardbanrecords/hardban-lab/internal/config"
)

const (
	defaultTokenTTL = time.Hour
	defaultIssuer   = "hardban-lab"
	minSecretLength = 32
)

// Config holds bearer token settings.
type Config struct {
	Secret   string
	TokenTTL time.Duration
	Issuer   string
}

// LoadConfig reads JWT_SECRET, AUTH_TOKEN_TTL and AUTH_ISSUER.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Secret:   config.GetEnvStr("JWT_SECRET", ""),
		TokenTTL: config.GetEnvDuration("AUTH_TOKEN_TTL", defaultTokenTTL),
		Issuer:   config.GetEnvStr("AUTH_ISSUER", defaultIssuer),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the secret and fills defaults for zero values.
func (c *Config) Validate() error {
	if c.Secret == "" {
		return ErrMissingSecret
	}

	if len(c.Secret) < minSecretLength {
		return fmt.Errorf("%w: need at least %d bytes, got %d", ErrWeakSecret, minSecretLength, len(c.Secret))
	}

	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}

	if c.Issuer == "" {
		c.Issuer = defaultIssuer
	}

	return nil
}
