package middleware

import (
	"time"

	"github.com/hardbanrecords/hardban-lab/internal/config"
)

const defaultCORSMaxAge = 10 * time.Minute

// CORSConfig holds the cross-origin settings of the service.
type CORSConfig struct {
	Environment config.Environment

	// Origins extends the built-in allow-list (CORS_ORIGINS, comma separated).
	Origins []string

	// AllowCredentials sets Access-Control-Allow-Credentials on allowed origins.
	AllowCredentials bool

	// MaxAge is how long browsers may cache a preflight answer.
	MaxAge time.Duration
}

// LoadCORSConfig reads CORS_ORIGINS, CORS_CREDENTIALS and CORS_MAX_AGE.
func LoadCORSConfig() *CORSConfig {
	return &CORSConfig{
		Environment:      config.LoadEnvironment(),
		Origins:          config.ParseCommaSeparatedList(config.GetEnvStr("CORS_ORIGINS", "")),
		AllowCredentials: config.GetEnvBool("CORS_CREDENTIALS", true),
		MaxAge:           config.GetEnvDuration("CORS_MAX_AGE", defaultCORSMaxAge),
	}
}
