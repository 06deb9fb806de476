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

// SettingsStorage persists per-user rate-limit settings. Overrides are stored
// as nullable column pairs so a partial override is not representable: both
// columns of a pair are written together or both are NULL.
type SettingsStorage struct {
	db *sqlx.DB
}

func NewSettingsStorage(pg *postgresql.Client) *SettingsStorage {
	return &SettingsStorage{
		db: pg.GetDB(),
	}
}

type settingsRow struct {
	UserID            string        `db:"user_id"`
	Tier              string        `db:"tier"`
	StdPermitLimit    sql.NullInt64 `db:"std_permit_limit"`
	StdWindowMinutes  sql.NullInt64 `db:"std_window_minutes"`
	ConvPermitLimit   sql.NullInt64 `db:"conv_permit_limit"`
	ConvWindowMinutes sql.NullInt64 `db:"conv_window_minutes"`
	UpdatedAt         sql.NullTime  `db:"updated_at"`
}

func (r *settingsRow) toDomain() *domain.UserRateLimitSettings {
	settings := &domain.UserRateLimitSettings{
		UserID: r.UserID,
		Tier:   r.Tier,
	}
	if r.UpdatedAt.Valid {
		settings.UpdatedAt = r.UpdatedAt.Time
	}
	if r.StdPermitLimit.Valid && r.StdWindowMinutes.Valid {
		settings.StandardOverride = &domain.PolicyLimit{
			PermitLimit:   int(r.StdPermitLimit.Int64),
			WindowMinutes: int(r.StdWindowMinutes.Int64),
		}
	}
	if r.ConvPermitLimit.Valid && r.ConvWindowMinutes.Valid {
		settings.ConversionOverride = &domain.PolicyLimit{
			PermitLimit:   int(r.ConvPermitLimit.Int64),
			WindowMinutes: int(r.ConvWindowMinutes.Int64),
		}
	}
	return settings
}

func nullPair(limit *domain.PolicyLimit) (sql.NullInt64, sql.NullInt64) {
	if limit == nil {
		return sql.NullInt64{}, sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(limit.PermitLimit), Valid: true},
		sql.NullInt64{Int64: int64(limit.WindowMinutes), Valid: true}
}

func (s *SettingsStorage) GetByUser(ctx context.Context, userID string) (*domain.UserRateLimitSettings, error) {
	var row settingsRow
	query := `
		SELECT
			user_id, tier, std_permit_limit, std_window_minutes,
			conv_permit_limit, conv_window_minutes, updated_at
		FROM rate_limit_settings
		WHERE user_id = $1
	`

	err := s.db.GetContext(ctx, &row, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get rate limit settings: %w", err)
	}

	return row.toDomain(), nil
}

// Upsert writes the full settings row, creating it on first mutation.
func (s *SettingsStorage) Upsert(ctx context.Context, settings *domain.UserRateLimitSettings) error {
	stdLimit, stdWindow := nullPair(settings.StandardOverride)
	convLimit, convWindow := nullPair(settings.ConversionOverride)

	query := `
		INSERT INTO rate_limit_settings (
			user_id, tier, std_permit_limit, std_window_minutes,
			conv_permit_limit, conv_window_minutes, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW()
		)
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier,
		    std_permit_limit = EXCLUDED.std_permit_limit,
		    std_window_minutes = EXCLUDED.std_window_minutes,
		    conv_permit_limit = EXCLUDED.conv_permit_limit,
		    conv_window_minutes = EXCLUDED.conv_window_minutes,
		    updated_at = NOW()
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		settings.UserID,
		settings.Tier,
		stdLimit,
		stdWindow,
		convLimit,
		convWindow,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert rate limit settings: %w", err)
	}

	return nil
}
