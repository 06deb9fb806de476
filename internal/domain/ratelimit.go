package domain

import (
	"fmt"
	"time"
)

// Rate limit tiers, ordered by increasing allowance.
const (
	TierFree      = "FREE"
	TierBasic     = "BASIC"
	TierPremium   = "PREMIUM"
	TierUnlimited = "UNLIMITED"
)

// Policy names. Each identifies an independent rate-limit bucket.
const (
	PolicyStandard   = "standard"
	PolicyConversion = "conversion"
)

// ValidPolicy reports whether name is a known policy name.
func ValidPolicy(name string) bool {
	return name == PolicyStandard || name == PolicyConversion
}

// ValidTier reports whether name is a known tier.
func ValidTier(name string) bool {
	switch name {
	case TierFree, TierBasic, TierPremium, TierUnlimited:
		return true
	}
	return false
}

// PolicyLimit is a permit limit over a time window.
type PolicyLimit struct {
	PermitLimit   int `db:"permit_limit" yaml:"permit_limit"`
	WindowMinutes int `db:"window_minutes" yaml:"window_minutes"`
}

// Window returns the limit window as a duration.
func (p PolicyLimit) Window() time.Duration {
	return time.Duration(p.WindowMinutes) * time.Minute
}

// UserRateLimitSettings holds a user's tier and any per-policy overrides.
// An override is always a complete (limit, window) pair or absent.
type UserRateLimitSettings struct {
	UserID             string       `db:"user_id"`
	Tier               string       `db:"tier"`
	StandardOverride   *PolicyLimit `db:"-"`
	ConversionOverride *PolicyLimit `db:"-"`
	UpdatedAt          time.Time    `db:"updated_at"`
}

// NewUserRateLimitSettings creates settings with tier FREE and no overrides,
// the state a user starts in on first access.
func NewUserRateLimitSettings(userID string) *UserRateLimitSettings {
	return &UserRateLimitSettings{
		UserID:    userID,
		Tier:      TierFree,
		UpdatedAt: time.Now().UTC(),
	}
}

// Override returns the override for policy, or nil when none is set.
func (s *UserRateLimitSettings) Override(policy string) *PolicyLimit {
	switch policy {
	case PolicyStandard:
		return s.StandardOverride
	case PolicyConversion:
		return s.ConversionOverride
	}
	return nil
}

// SetOverride replaces the override for policy. A nil limit clears it.
func (s *UserRateLimitSettings) SetOverride(policy string, limit *PolicyLimit) error {
	switch policy {
	case PolicyStandard:
		s.StandardOverride = limit
	case PolicyConversion:
		s.ConversionOverride = limit
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	return nil
}

// TierPolicies is the pair of policies a tier grants by default.
type TierPolicies struct {
	Standard   PolicyLimit `yaml:"standard"`
	Conversion PolicyLimit `yaml:"conversion"`
}

// TierTable maps tier name to its default policies. Loaded once at startup
// and read-only afterwards.
type TierTable map[string]TierPolicies

// Policy returns the tier's limit for policy. A missing tier is a
// configuration fault.
func (t TierTable) Policy(tier, policy string) (PolicyLimit, error) {
	policies, ok := t[tier]
	if !ok {
		return PolicyLimit{}, fmt.Errorf("%w: %q", ErrTierNotConfigured, tier)
	}
	switch policy {
	case PolicyStandard:
		return policies.Standard, nil
	case PolicyConversion:
		return policies.Conversion, nil
	}
	return PolicyLimit{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
}

// Resolution sources for effective limits.
const (
	LimitSourceAdmin    = "Admin"
	LimitSourceOverride = "Override"
	LimitSourceTier     = "Tier"
)

// EffectiveLimits is the resolved admission decision input for one user and
// policy. When Bypass is set the limit fields are zero and unused.
type EffectiveLimits struct {
	PermitLimit int
	Window      time.Duration
	Bypass      bool
	Source      string
}
