package ratelimit

import (
	"net/http"
	"time"

	"github.com/hardbanrecords/hardban-lab/internal/config"
)

// Class names a group of routes sharing one rate limit policy.
type Class string

const (
	ClassAPI     Class = "api"
	ClassAuth    Class = "auth"
	ClassUpload  Class = "upload"
	ClassAdmin   Class = "admin"
	ClassWebhook Class = "webhook"
)

// Classes lists every route class in a stable order.
func Classes() []Class {
	return []Class{ClassAPI, ClassAuth, ClassUpload, ClassAdmin, ClassWebhook}
}

// Error codes returned in the "error" field of 429 responses.
const (
	CodeAPI     = "RATE_LIMIT_API"
	CodeAuth    = "RATE_LIMIT_AUTH"
	CodeUpload  = "RATE_LIMIT_UPLOAD"
	CodeAdmin   = "RATE_LIMIT_ADMIN"
	CodeWebhook = "RATE_LIMIT_WEBHOOK"
	CodeTier    = "RATE_LIMIT_TIER"
)

const RoleAdmin = "admin"

// Limit is a window length and the number of hits allowed in it.
type Limit struct {
	Window time.Duration `yaml:"window"`
	Max    int64         `yaml:"max"`
}

// Policy configures one limiter.
type Policy struct {
	// Name labels metrics and audit logs.
	Name    string
	Window  time.Duration
	Max     int64
	Message string
	Code    string
	// Suffix is appended to the default key to separate classes sharing a store.
	Suffix  string
	KeyFunc KeyFunc
	Skip    SkipFunc
	// UseRedis selects the shared store. When false the limiter always counts in memory.
	UseRedis bool
}

// DefaultLimits are the per-class windows before file and env overrides.
func DefaultLimits() map[Class]Limit {
	return map[Class]Limit{
		ClassAPI:     {Window: 15 * time.Minute, Max: 100},
		ClassAuth:    {Window: 15 * time.Minute, Max: 5},
		ClassUpload:  {Window: time.Hour, Max: 20},
		ClassAdmin:   {Window: 15 * time.Minute, Max: 1000},
		ClassWebhook: {Window: time.Minute, Max: 120},
	}
}

// HealthPaths are never limited.
var HealthPaths = map[string]struct{}{ //nolint:gochecknoglobals
	"/health":  {},
	"/ping":    {},
	"/ready":   {},
	"/metrics": {},
}

// DefaultSkip exempts health checks always and admins in development.
func DefaultSkip(env config.Environment) SkipFunc {
	return func(r *http.Request, s Subject) bool {
		if _, ok := HealthPaths[r.URL.Path]; ok {
			return true
		}

		return env.IsDevelopment() && s.Role == RoleAdmin
	}
}

// NewPolicy builds the policy for a route class from its limit.
func NewPolicy(class Class, limit Limit, env config.Environment) Policy {
	p := Policy{
		Name:     string(class),
		Window:   limit.Window,
		Max:      limit.Max,
		Suffix:   string(class),
		Skip:     DefaultSkip(env),
		UseRedis: true,
	}

	switch class {
	case ClassAuth:
		p.Code = CodeAuth
		p.Message = "Too many authentication attempts, please try again later."
		p.KeyFunc = IPKeyFunc(p.Suffix)
	case ClassUpload:
		p.Code = CodeUpload
		p.Message = "Upload limit reached, please try again later."
		p.KeyFunc = HeaderKeyFunc("X-File-Type", p.Suffix)
	case ClassAdmin:
		p.Code = CodeAdmin
		p.Message = "Too many admin requests, please slow down."
		p.KeyFunc = UserKeyFunc(p.Suffix)
	case ClassWebhook:
		p.Code = CodeWebhook
		p.Message = "Too many webhook deliveries for this channel."
		p.KeyFunc = HeaderKeyFunc("X-Store-Channel", p.Suffix)
		p.UseRedis = false
	default:
		p.Code = CodeAPI
		p.Message = "Too many requests from this client, please try again later."
		p.KeyFunc = DefaultKeyFunc(p.Suffix)
	}

	return p
}
