package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fileforge/fileforge/internal/domain"
	"github.com/fileforge/fileforge/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// QuotaStorage persists per-user monthly usage quotas
type QuotaStorage struct {
	db *sqlx.DB
}

func NewQuotaStorage(pg *postgresql.Client) *QuotaStorage {
	return &QuotaStorage{
		db: pg.GetDB(),
	}
}

func (s *QuotaStorage) GetByUserAndMonth(ctx context.Context, userID string, year, month int) (*domain.UsageQuota, error) {
	var quota domain.UsageQuota
	query := `
		SELECT
			user_id, year, month, conversions_used, conversions_limit,
			bytes_used, bytes_limit, created_at, updated_at
		FROM usage_quotas
		WHERE user_id = $1 AND year = $2 AND month = $3
	`

	err := s.db.GetContext(ctx, &quota, query, userID, year, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQuotaRecordNotFound
		}
		return nil, fmt.Errorf("failed to get usage quota: %w", err)
	}

	return &quota, nil
}

func (s *QuotaStorage) Create(ctx context.Context, quota *domain.UsageQuota) error {
	query := `
		INSERT INTO usage_quotas (
			user_id, year, month, conversions_used, conversions_limit,
			bytes_used, bytes_limit, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		quota.UserID,
		quota.Year,
		quota.Month,
		quota.ConversionsUsed,
		quota.ConversionsLimit,
		quota.BytesUsed,
		quota.BytesLimit,
		quota.CreatedAt,
		quota.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create usage quota: %w", err)
	}

	return nil
}

// RecordUsage increments both counters in a single statement. Counters only
// grow; there is no decrement path.
func (s *QuotaStorage) RecordUsage(ctx context.Context, userID string, year, month int, bytes int64) error {
	query := `
		UPDATE usage_quotas
		SET conversions_used = conversions_used + 1,
		    bytes_used = bytes_used + $1,
		    updated_at = NOW()
		WHERE user_id = $2 AND year = $3 AND month = $4
	`

	result, err := s.db.ExecContext(ctx, query, bytes, userID, year, month)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return domain.ErrQuotaRecordNotFound
	}

	return nil
}

// UpdateLimits overwrites the limits on a month's record, independent of usage.
func (s *QuotaStorage) UpdateLimits(ctx context.Context, userID string, year, month, conversionsLimit int, bytesLimit int64) error {
	query := `
		UPDATE usage_quotas
		SET conversions_limit = $1,
		    bytes_limit = $2,
		    updated_at = NOW()
		WHERE user_id = $3 AND year = $4 AND month = $5
	`

	result, err := s.db.ExecContext(ctx, query, conversionsLimit, bytesLimit, userID, year, month)
	if err != nil {
		return fmt.Errorf("failed to update quota limits: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return domain.ErrQuotaRecordNotFound
	}

	return nil
}

// ListRecent returns up to months records for the user, most recent first.
// Months without activity have no record and are not fabricated.
func (s *QuotaStorage) ListRecent(ctx context.Context, userID string, months int) ([]domain.UsageQuota, error) {
	query := `
		SELECT
			user_id, year, month, conversions_used, conversions_limit,
			bytes_used, bytes_limit, created_at, updated_at
		FROM usage_quotas
		WHERE user_id = $1
		ORDER BY year DESC, month DESC
		LIMIT $2
	`

	var quotas []domain.UsageQuota
	err := s.db.SelectContext(ctx, &quotas, query, userID, months)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage quotas: %w", err)
	}

	return quotas, nil
}
