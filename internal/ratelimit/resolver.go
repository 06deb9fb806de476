package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
)

// Repository is the persistence surface the resolver needs
type Repository interface {
	GetByUser(ctx context.Context, userID string) (*domain.UserRateLimitSettings, error)
	Upsert(ctx context.Context, settings *domain.UserRateLimitSettings) error
}

// Resolver computes effective rate limits for a user and policy. Precedence:
// admin bypass (when globally enabled), then a complete per-user override,
// then the tier default from the static tier table.
type Resolver struct {
	repo           Repository
	tiers          domain.TierTable
	adminExemption bool
	cache          *settingsCache
	logger         *slog.Logger
}

// Options configures a Resolver
type Options struct {
	Tiers          domain.TierTable
	AdminExemption bool
	CacheTTL       time.Duration
}

func NewResolver(repo Repository, opts Options, logger *slog.Logger) *Resolver {
	return &Resolver{
		repo:           repo,
		tiers:          opts.Tiers,
		adminExemption: opts.AdminExemption,
		cache:          newSettingsCache(opts.CacheTTL),
		logger:         logger,
	}
}

// settings returns the user's settings through the cache. A user with no
// persisted row gets the default FREE-tier settings; the row is only written
// once a mutation happens.
func (r *Resolver) settings(ctx context.Context, userID string) (*domain.UserRateLimitSettings, error) {
	if cached := r.cache.Get(userID); cached != nil {
		return cached, nil
	}

	// The generation is read before the repository; a mutation landing
	// between the read and the fill bumps it and the stale fill is dropped.
	generation := r.cache.Generation(userID)

	settings, err := r.repo.GetByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrSettingsNotFound) {
			return nil, err
		}
		settings = domain.NewUserRateLimitSettings(userID)
	}

	r.cache.Set(userID, settings, generation)
	return settings, nil
}

// EffectiveLimits resolves the (limit, window, bypass, source) tuple for
// admission. An unknown policy name is a caller error. A tier missing from
// the table is a configuration fault and is returned as such.
func (r *Resolver) EffectiveLimits(ctx context.Context, userID, policy string, isAdmin bool) (domain.EffectiveLimits, error) {
	if !domain.ValidPolicy(policy) {
		return domain.EffectiveLimits{}, fmt.Errorf("%w: %q", domain.ErrUnknownPolicy, policy)
	}

	if isAdmin && r.adminExemption {
		return domain.EffectiveLimits{Bypass: true, Source: domain.LimitSourceAdmin}, nil
	}

	settings, err := r.settings(ctx, userID)
	if err != nil {
		return domain.EffectiveLimits{}, err
	}

	if override := settings.Override(policy); override != nil {
		return domain.EffectiveLimits{
			PermitLimit: override.PermitLimit,
			Window:      override.Window(),
			Source:      domain.LimitSourceOverride,
		}, nil
	}

	limit, err := r.tiers.Policy(settings.Tier, policy)
	if err != nil {
		return domain.EffectiveLimits{}, err
	}

	return domain.EffectiveLimits{
		PermitLimit: limit.PermitLimit,
		Window:      limit.Window(),
		Source:      domain.LimitSourceTier,
	}, nil
}

// load fetches settings for mutation, bypassing the cache.
func (r *Resolver) load(ctx context.Context, userID string) (*domain.UserRateLimitSettings, error) {
	settings, err := r.repo.GetByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrSettingsNotFound) {
			return nil, err
		}
		settings = domain.NewUserRateLimitSettings(userID)
	}
	return settings, nil
}

// persist writes the settings and invalidates the cache entry before
// returning, so any subsequent resolution sees the update.
func (r *Resolver) persist(ctx context.Context, settings *domain.UserRateLimitSettings) error {
	if err := r.repo.Upsert(ctx, settings); err != nil {
		return err
	}
	r.cache.Invalidate(settings.UserID)
	return nil
}

// SetOverride sets or clears a per-policy override. Both permitLimit and
// windowMinutes non-nil sets the override; both nil clears it; mixing is a
// validation error.
func (r *Resolver) SetOverride(ctx context.Context, userID, policy string, permitLimit, windowMinutes *int) error {
	if !domain.ValidPolicy(policy) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownPolicy, policy)
	}

	if (permitLimit == nil) != (windowMinutes == nil) {
		return domain.ErrPartialOverride
	}

	settings, err := r.load(ctx, userID)
	if err != nil {
		return err
	}

	var override *domain.PolicyLimit
	if permitLimit != nil {
		override = &domain.PolicyLimit{PermitLimit: *permitLimit, WindowMinutes: *windowMinutes}
	}

	if err := settings.SetOverride(policy, override); err != nil {
		return err
	}

	if err := r.persist(ctx, settings); err != nil {
		return err
	}

	r.logger.Info("Rate limit override updated",
		slog.String("user_id", userID),
		slog.String("policy", policy),
		slog.Bool("cleared", override == nil),
	)

	return nil
}

// UpdateTier replaces the user's tier. Existing overrides stay in place and
// keep precedence regardless of the new tier.
func (r *Resolver) UpdateTier(ctx context.Context, userID, tier string) error {
	if !domain.ValidTier(tier) {
		return fmt.Errorf("invalid tier: %q", tier)
	}

	settings, err := r.load(ctx, userID)
	if err != nil {
		return err
	}

	settings.Tier = tier

	if err := r.persist(ctx, settings); err != nil {
		return err
	}

	r.logger.Info("Rate limit tier updated",
		slog.String("user_id", userID),
		slog.String("tier", tier),
	)

	return nil
}

// ClearOverrides removes both policy overrides unconditionally.
func (r *Resolver) ClearOverrides(ctx context.Context, userID string) error {
	settings, err := r.load(ctx, userID)
	if err != nil {
		return err
	}

	settings.StandardOverride = nil
	settings.ConversionOverride = nil

	if err := r.persist(ctx, settings); err != nil {
		return err
	}

	r.logger.Info("Rate limit overrides cleared",
		slog.String("user_id", userID),
	)

	return nil
}

// Settings returns the user's current settings (admin read surface).
func (r *Resolver) Settings(ctx context.Context, userID string) (*domain.UserRateLimitSettings, error) {
	return r.settings(ctx, userID)
}
