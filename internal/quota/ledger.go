package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
)

// Repository is the persistence surface the ledger needs
type Repository interface {
	GetByUserAndMonth(ctx context.Context, userID string, year, month int) (*domain.UsageQuota, error)
	Create(ctx context.Context, quota *domain.UsageQuota) error
	RecordUsage(ctx context.Context, userID string, year, month int, bytes int64) error
	UpdateLimits(ctx context.Context, userID string, year, month, conversionsLimit int, bytesLimit int64) error
	ListRecent(ctx context.Context, userID string, months int) ([]domain.UsageQuota, error)
}

// Defaults are the limits copied onto a quota record at creation time
type Defaults struct {
	ConversionsLimit int
	BytesLimit       int64
}

// Ledger tracks per-user monthly conversion usage. Check is an advisory
// pre-flight gate; Record runs after a conversion's success is known. The
// two are deliberately not atomic, so concurrent conversions from one user
// can overshoot a limit by the number of requests in flight.
type Ledger struct {
	repo     Repository
	defaults Defaults
	logger   *slog.Logger
	now      func() time.Time
}

func NewLedger(repo Repository, defaults Defaults, logger *slog.Logger) *Ledger {
	return &Ledger{
		repo:     repo,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

// currentMonth returns the (year, month) key for the current UTC month.
func (l *Ledger) currentMonth() (int, int) {
	now := l.now().UTC()
	return now.Year(), int(now.Month())
}

// resolve loads the current month's record, creating it with default limits
// on first access.
func (l *Ledger) resolve(ctx context.Context, userID string) (*domain.UsageQuota, error) {
	year, month := l.currentMonth()

	quota, err := l.repo.GetByUserAndMonth(ctx, userID, year, month)
	if err == nil {
		return quota, nil
	}
	if !errors.Is(err, domain.ErrQuotaRecordNotFound) {
		return nil, err
	}

	quota = domain.NewUsageQuota(userID, year, month, l.defaults.ConversionsLimit, l.defaults.BytesLimit)
	if err := l.repo.Create(ctx, quota); err != nil {
		return nil, fmt.Errorf("failed to create quota record: %w", err)
	}

	l.logger.Info("Created usage quota record",
		slog.String("user_id", userID),
		slog.Int("year", year),
		slog.Int("month", month),
	)

	return quota, nil
}

// Check reports whether the user may convert now. It mutates nothing beyond
// lazily creating the month's record.
func (l *Ledger) Check(ctx context.Context, userID string) error {
	quota, err := l.resolve(ctx, userID)
	if err != nil {
		return err
	}

	if quota.Exhausted() {
		return fmt.Errorf("%w: %d/%d conversions, %d/%d bytes",
			domain.ErrQuotaExceeded,
			quota.ConversionsUsed, quota.ConversionsLimit,
			quota.BytesUsed, quota.BytesLimit,
		)
	}

	return nil
}

// Record adds one conversion and bytesProcessed to the current month. Called
// only after a conversion completed successfully.
func (l *Ledger) Record(ctx context.Context, userID string, bytesProcessed int64) error {
	// Resolve first so a success that crosses a month boundary still lands
	// on an existing record.
	if _, err := l.resolve(ctx, userID); err != nil {
		return err
	}

	year, month := l.currentMonth()
	if err := l.repo.RecordUsage(ctx, userID, year, month, bytesProcessed); err != nil {
		return err
	}

	l.logger.Debug("Recorded conversion usage",
		slog.String("user_id", userID),
		slog.Int64("bytes", bytesProcessed),
	)

	return nil
}

// UpdateLimits overwrites the current month's limits, creating the record if
// absent. Administrative operation; usage counters are untouched.
func (l *Ledger) UpdateLimits(ctx context.Context, userID string, conversionsLimit int, bytesLimit int64) error {
	if _, err := l.resolve(ctx, userID); err != nil {
		return err
	}

	year, month := l.currentMonth()
	return l.repo.UpdateLimits(ctx, userID, year, month, conversionsLimit, bytesLimit)
}

// Current returns the current month's record, creating it if absent.
func (l *Ledger) Current(ctx context.Context, userID string) (*domain.UsageQuota, error) {
	return l.resolve(ctx, userID)
}

// History returns up to months most recent records, descending by recency.
func (l *Ledger) History(ctx context.Context, userID string, months int) ([]domain.UsageQuota, error) {
	return l.repo.ListRecent(ctx, userID, months)
}
