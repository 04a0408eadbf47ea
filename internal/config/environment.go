package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment is the deployment mode the service runs in. It drives CORS leniency,
// the admin rate limit bypass and whether the CORS gate runs at all.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"

	// Unspecified is an unset or unrecognised mode. It gets none of the development
	// exemptions and none of the production suffix allowance.
	Unspecified Environment = "unspecified"
)

// ErrMissingSetting is returned when a required setting is absent from the environment.
var ErrMissingSetting = errors.New("missing required setting")

// RequiredSecrets lists the settings the server refuses to start without.
var RequiredSecrets = []string{"DATABASE_URL", "JWT_SECRET"} //nolint:gochecknoglobals

// LoadEnvironment resolves the runtime environment from APP_ENV, falling back to
// NODE_ENV for deployments that still export the older variable. Unset and unknown
// values resolve to Unspecified.
func LoadEnvironment() Environment {
	value := strings.ToLower(strings.TrimSpace(GetEnvStr("APP_ENV", os.Getenv("NODE_ENV"))))

	return ParseEnvironment(value)
}

// ParseEnvironment maps a raw value onto a known Environment.
func ParseEnvironment(value string) Environment {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "production", "prod":
		return Production
	case "test", "testing":
		return Test
	case "development", "dev":
		return Development
	default:
		return Unspecified
	}
}

func (e Environment) IsProduction() bool  { return e == Production }
func (e Environment) IsDevelopment() bool { return e == Development }
func (e Environment) IsTest() bool        { return e == Test }

// IsSpecified reports whether e is one of the known deployment modes.
func (e Environment) IsSpecified() bool {
	return e == Development || e == Production || e == Test
}

func (e Environment) String() string { return string(e) }

// RequireEnv checks that every key is set to a non-blank value. All missing keys are
// reported in a single error wrapping ErrMissingSetting.
func RequireEnv(keys ...string) error {
	var missing []string

	for _, key := range keys {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}

	return nil
}
