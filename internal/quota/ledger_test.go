package quota

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuotaRepo struct {
	records map[string]*domain.UsageQuota
}

func newFakeQuotaRepo() *fakeQuotaRepo {
	return &fakeQuotaRepo{records: make(map[string]*domain.UsageQuota)}
}

func quotaKey(userID string, year, month int) string {
	return fmt.Sprintf("%s/%04d-%02d", userID, year, month)
}

func (r *fakeQuotaRepo) GetByUserAndMonth(_ context.Context, userID string, year, month int) (*domain.UsageQuota, error) {
	quota, ok := r.records[quotaKey(userID, year, month)]
	if !ok {
		return nil, domain.ErrQuotaRecordNotFound
	}
	copied := *quota
	return &copied, nil
}

func (r *fakeQuotaRepo) Create(_ context.Context, quota *domain.UsageQuota) error {
	copied := *quota
	r.records[quotaKey(quota.UserID, quota.Year, quota.Month)] = &copied
	return nil
}

func (r *fakeQuotaRepo) RecordUsage(_ context.Context, userID string, year, month int, bytes int64) error {
	quota, ok := r.records[quotaKey(userID, year, month)]
	if !ok {
		return domain.ErrQuotaRecordNotFound
	}
	quota.ConversionsUsed++
	quota.BytesUsed += bytes
	return nil
}

func (r *fakeQuotaRepo) UpdateLimits(_ context.Context, userID string, year, month, conversionsLimit int, bytesLimit int64) error {
	quota, ok := r.records[quotaKey(userID, year, month)]
	if !ok {
		return domain.ErrQuotaRecordNotFound
	}
	quota.ConversionsLimit = conversionsLimit
	quota.BytesLimit = bytesLimit
	return nil
}

func (r *fakeQuotaRepo) ListRecent(_ context.Context, userID string, months int) ([]domain.UsageQuota, error) {
	var out []domain.UsageQuota
	// Fake keeps insertion simple; tests seed in descending order.
	for _, quota := range r.records {
		if quota.UserID == userID {
			out = append(out, *quota)
		}
	}
	if len(out) > months {
		out = out[:months]
	}
	return out, nil
}

func newTestLedger(repo Repository) *Ledger {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := NewLedger(repo, Defaults{ConversionsLimit: 3, BytesLimit: 1000}, logger)
	ledger.now = func() time.Time {
		return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	}
	return ledger
}

func TestLedgerCheckCreatesRecordLazily(t *testing.T) {
	repo := newFakeQuotaRepo()
	ledger := newTestLedger(repo)

	require.NoError(t, ledger.Check(context.Background(), "user-1"))

	quota, ok := repo.records[quotaKey("user-1", 2025, 6)]
	require.True(t, ok)
	assert.Equal(t, 3, quota.ConversionsLimit)
	assert.Equal(t, int64(1000), quota.BytesLimit)
	assert.Zero(t, quota.ConversionsUsed)
}

func TestLedgerCheckFailsAtLimit(t *testing.T) {
	tests := []struct {
		name  string
		quota domain.UsageQuota
		want  error
	}{
		{
			name:  "conversions at limit",
			quota: domain.UsageQuota{ConversionsUsed: 3, ConversionsLimit: 3, BytesLimit: 1000},
			want:  domain.ErrQuotaExceeded,
		},
		{
			name:  "bytes at limit",
			quota: domain.UsageQuota{ConversionsLimit: 3, BytesUsed: 1000, BytesLimit: 1000},
			want:  domain.ErrQuotaExceeded,
		},
		{
			name:  "under both limits",
			quota: domain.UsageQuota{ConversionsUsed: 2, ConversionsLimit: 3, BytesUsed: 500, BytesLimit: 1000},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeQuotaRepo()
			q := tt.quota
			q.UserID = "user-1"
			q.Year = 2025
			q.Month = 6
			repo.records[quotaKey("user-1", 2025, 6)] = &q

			ledger := newTestLedger(repo)
			err := ledger.Check(context.Background(), "user-1")

			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestLedgerCheckDoesNotMutate(t *testing.T) {
	repo := newFakeQuotaRepo()
	ledger := newTestLedger(repo)

	require.NoError(t, ledger.Check(context.Background(), "user-1"))
	require.NoError(t, ledger.Check(context.Background(), "user-1"))

	quota := repo.records[quotaKey("user-1", 2025, 6)]
	assert.Zero(t, quota.ConversionsUsed)
	assert.Zero(t, quota.BytesUsed)
}

func TestLedgerRecordIncrementsCounters(t *testing.T) {
	repo := newFakeQuotaRepo()
	ledger := newTestLedger(repo)

	require.NoError(t, ledger.Record(context.Background(), "user-1", 400))
	require.NoError(t, ledger.Record(context.Background(), "user-1", 250))

	quota := repo.records[quotaKey("user-1", 2025, 6)]
	assert.Equal(t, 2, quota.ConversionsUsed)
	assert.Equal(t, int64(650), quota.BytesUsed)
}

func TestLedgerAdvisoryGateAllowsOvershoot(t *testing.T) {
	// Check-then-record is not atomic: two requests that both pass the gate
	// can push usage past the limit. The ledger accepts this overshoot.
	repo := newFakeQuotaRepo()
	ledger := newTestLedger(repo)
	ctx := context.Background()

	repo.records[quotaKey("user-1", 2025, 6)] = &domain.UsageQuota{
		UserID: "user-1", Year: 2025, Month: 6,
		ConversionsUsed: 2, ConversionsLimit: 3, BytesLimit: 1000,
	}

	require.NoError(t, ledger.Check(ctx, "user-1"))
	require.NoError(t, ledger.Check(ctx, "user-1"))
	require.NoError(t, ledger.Record(ctx, "user-1", 100))
	require.NoError(t, ledger.Record(ctx, "user-1", 100))

	quota := repo.records[quotaKey("user-1", 2025, 6)]
	assert.Equal(t, 4, quota.ConversionsUsed)

	// The gate closes on the next check.
	err := ledger.Check(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestLedgerUpdateLimits(t *testing.T) {
	repo := newFakeQuotaRepo()
	ledger := newTestLedger(repo)
	ctx := context.Background()

	// Creates the record when absent.
	require.NoError(t, ledger.UpdateLimits(ctx, "user-1", 50, 5000))

	quota := repo.records[quotaKey("user-1", 2025, 6)]
	assert.Equal(t, 50, quota.ConversionsLimit)
	assert.Equal(t, int64(5000), quota.BytesLimit)
	assert.Zero(t, quota.ConversionsUsed)
}

func TestLedgerHistory(t *testing.T) {
	repo := newFakeQuotaRepo()
	ledger := newTestLedger(repo)

	repo.records[quotaKey("user-1", 2025, 5)] = &domain.UsageQuota{UserID: "user-1", Year: 2025, Month: 5}
	repo.records[quotaKey("user-1", 2025, 6)] = &domain.UsageQuota{UserID: "user-1", Year: 2025, Month: 6}

	history, err := ledger.History(context.Background(), "user-1", 12)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
