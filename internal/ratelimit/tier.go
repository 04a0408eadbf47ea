package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"github.com/hardbanrecords/hardban-lab/internal/config"
)

// Tier is a subscription level with its own request budget.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// ParseTier maps a raw tier name onto a known Tier, defaulting to free.
func ParseTier(raw string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierBasic:
		return TierBasic
	case TierPremium:
		return TierPremium
	case TierEnterprise:
		return TierEnterprise
	default:
		return TierFree
	}
}

// DefaultTierLimits returns the budget of each tier.
func DefaultTierLimits() map[Tier]Limit {
	return map[Tier]Limit{
		TierFree:       {Window: 15 * time.Minute, Max: 100},
		TierBasic:      {Window: 15 * time.Minute, Max: 500},
		TierPremium:    {Window: 15 * time.Minute, Max: 2000},
		TierEnterprise: {Window: 15 * time.Minute, Max: 10000},
	}
}

// TieredLimiter picks a limiter by the caller's subscription tier.
type TieredLimiter struct {
	limiters map[Tier]*Limiter
}

// NewTieredLimiter creates one limiter per tier over store. Tiers missing from
// limits use their default budget.
func NewTieredLimiter(limits map[Tier]Limit, store Store, env config.Environment) *TieredLimiter {
	merged := DefaultTierLimits()
	for tier, limit := range limits {
		merged[tier] = limit
	}

	t := &TieredLimiter{limiters: make(map[Tier]*Limiter, len(merged))}

	for tier, limit := range merged {
		suffix := "tier:" + string(tier)

		t.limiters[tier] = NewLimiter(Policy{
			Name:     "tier_" + string(tier),
			Window:   limit.Window,
			Max:      limit.Max,
			Code:     CodeTier,
			Message:  "Request quota for the " + string(tier) + " plan exceeded, upgrade or try again later.",
			Suffix:   suffix,
			KeyFunc:  UserKeyFunc(suffix),
			Skip:     DefaultSkip(env),
			UseRedis: true,
		}, store)
	}

	return t
}

// Allow applies the limit of the caller's tier.
func (t *TieredLimiter) Allow(r *http.Request, s Subject) (Result, error) {
	return t.For(ParseTier(s.Tier)).Allow(r, s)
}

// For returns the limiter of tier, or the free tier limiter for unknown tiers.
func (t *TieredLimiter) For(tier Tier) *Limiter {
	if l, ok := t.limiters[tier]; ok {
		return l
	}

	return t.limiters[TierFree]
}
