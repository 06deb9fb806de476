package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/fileforge/fileforge/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCursorRoundTrip(t *testing.T) {
	original := &storage.JobCursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
		JobID:     "9f6c2b1a-0d4e-4f6a-8a2b-1c3d5e7f9a0b",
	}

	decoded, err := DecodeJobCursor(EncodeJobCursor(original))
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, original.JobID, decoded.JobID)
}

func TestDecodeJobCursorEmpty(t *testing.T) {
	cursor, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeJobCursorInvalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "!!not-base64!!"},
		{"missing separator", base64.StdEncoding.EncodeToString([]byte("12345"))},
		{"non-numeric timestamp", base64.StdEncoding.EncodeToString([]byte("abc|job-1"))},
		{"too many parts", base64.StdEncoding.EncodeToString([]byte("1|2|3"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJobCursor(tt.cursor)
			assert.Error(t, err)
		})
	}
}
