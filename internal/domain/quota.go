package domain

import "time"

// UsageQuota is one user's conversion allowance for a single calendar month.
// Records are created lazily on first check and never deleted.
type UsageQuota struct {
	UserID           string    `db:"user_id"`
	Year             int       `db:"year"`
	Month            int       `db:"month"`
	ConversionsUsed  int       `db:"conversions_used"`
	ConversionsLimit int       `db:"conversions_limit"`
	BytesUsed        int64     `db:"bytes_used"`
	BytesLimit       int64     `db:"bytes_limit"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// NewUsageQuota creates the current month's record for a user with the
// supplied default limits.
func NewUsageQuota(userID string, year int, month int, conversionsLimit int, bytesLimit int64) *UsageQuota {
	now := time.Now().UTC()
	return &UsageQuota{
		UserID:           userID,
		Year:             year,
		Month:            month,
		ConversionsLimit: conversionsLimit,
		BytesLimit:       bytesLimit,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Exhausted reports whether either counter has reached its limit.
func (q *UsageQuota) Exhausted() bool {
	return q.ConversionsUsed >= q.ConversionsLimit || q.BytesUsed >= q.BytesLimit
}
