package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found or is not owned by the caller
	ErrJobNotFound = errors.New("conversion job not found")

	// ErrUnauthorized is returned when no authenticated user is present on the request
	ErrUnauthorized = errors.New("no authenticated user")

	// ErrQuotaExceeded is returned by the advisory quota gate when a monthly counter is at its limit
	ErrQuotaExceeded = errors.New("monthly conversion quota exceeded")

	// ErrUnsupportedConversion is returned when no converter handles the requested format pair
	ErrUnsupportedConversion = errors.New("unsupported conversion")

	// ErrInvalidTransition is returned when a job state transition is not permitted
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrUnknownPolicy is returned for policy names other than "standard" and "conversion"
	ErrUnknownPolicy = errors.New("unknown rate limit policy")

	// ErrPartialOverride is returned when only one half of a (limit, window) override is supplied
	ErrPartialOverride = errors.New("rate limit override requires both permit limit and window")

	// ErrTierNotConfigured indicates a tier missing from the static tier table.
	// This is a configuration fault, not a per-request condition.
	ErrTierNotConfigured = errors.New("rate limit tier not configured")

	// ErrQuotaRecordNotFound signals a month with no quota record yet;
	// the ledger creates records lazily on first check
	ErrQuotaRecordNotFound = errors.New("usage quota record not found")

	// ErrSettingsNotFound signals a user with no rate limit settings row yet
	ErrSettingsNotFound = errors.New("rate limit settings not found")
)

// Error codes attached to batch item results and API error payloads.
const (
	CodeUnauthorized     = "Unauthorized"
	CodeValidation       = "Validation"
	CodeNotFound         = "NotFound"
	CodeQuotaExceeded    = "QuotaExceeded"
	CodeRateLimited      = "RateLimited"
	CodeConversionFailed = "ConversionFailed"
	CodeBatchInvalidType = "Batch.InvalidType"
	CodeBatchItemFailed  = "Batch.ItemFailed"
)
