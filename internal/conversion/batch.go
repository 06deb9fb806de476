package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fileforge/fileforge/internal/domain"
)

// Batch size bounds. Violations fail the whole request before any item runs.
const (
	MinBatchItems = 1
	MaxBatchItems = 20
)

var (
	// ErrEmptyBatch is returned for a batch with no items
	ErrEmptyBatch = errors.New("batch must contain at least one item")

	// ErrBatchTooLarge is returned for a batch over the item limit
	ErrBatchTooLarge = fmt.Errorf("batch must contain at most %d items", MaxBatchItems)
)

// Submitter runs one conversion; satisfied by *Service.
type Submitter interface {
	Submit(ctx context.Context, userID string, req Request) (*domain.ConversionJob, error)
}

// BatchItem is one entry in a batch request. Type selects which submitter
// handles the item.
type BatchItem struct {
	Type         string
	SourceFormat string
	TargetFormat string
	FileName     string
	Content      string
	Options      map[string]string
}

// BatchItemResult reports one item's outcome at its original index.
type BatchItemResult struct {
	Index        int
	Success      bool
	Job          *domain.ConversionJob
	ErrorCode    string
	ErrorMessage string
}

// BatchResult aggregates a batch run. Items are indexed identically to the
// input order.
type BatchResult struct {
	TotalItems     int
	SucceededCount int
	FailedCount    int
	Items          []BatchItemResult
}

// BatchProcessor fans a batch out to per-type submitters sequentially,
// isolating item failures from each other.
type BatchProcessor struct {
	submitters map[string]Submitter
	logger     *slog.Logger
}

func NewBatchProcessor(submitters map[string]Submitter, logger *slog.Logger) *BatchProcessor {
	return &BatchProcessor{
		submitters: submitters,
		logger:     logger,
	}
}

// Process validates the batch as a whole, then runs items one at a time.
// When an item fails its result records the failure and the loop continues.
func (p *BatchProcessor) Process(ctx context.Context, userID string, items []BatchItem, webhookURL string) (*BatchResult, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if len(items) < MinBatchItems {
		return nil, ErrEmptyBatch
	}
	if len(items) > MaxBatchItems {
		return nil, ErrBatchTooLarge
	}

	result := &BatchResult{
		TotalItems: len(items),
		Items:      make([]BatchItemResult, len(items)),
	}

	for i, item := range items {
		itemResult := p.processItem(ctx, userID, i, item, webhookURL)
		result.Items[i] = itemResult
		if itemResult.Success {
			result.SucceededCount++
		} else {
			result.FailedCount++
		}
	}

	p.logger.Info("Batch processed",
		slog.String("user_id", userID),
		slog.Int("total", result.TotalItems),
		slog.Int("succeeded", result.SucceededCount),
		slog.Int("failed", result.FailedCount),
	)

	return result, nil
}

func (p *BatchProcessor) processItem(ctx context.Context, userID string, index int, item BatchItem, webhookURL string) (result BatchItemResult) {
	result.Index = index

	// A panicking submitter fails its item, not the batch.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Batch item panicked",
				slog.Int("index", index),
				slog.Any("panic", r),
			)
			result.Success = false
			result.Job = nil
			result.ErrorCode = domain.CodeBatchItemFailed
			result.ErrorMessage = fmt.Sprintf("item processing panicked: %v", r)
		}
	}()

	submitter, ok := p.submitters[item.Type]
	if !ok {
		result.ErrorCode = domain.CodeBatchInvalidType
		result.ErrorMessage = fmt.Sprintf("unknown conversion type: %q", item.Type)
		return result
	}

	job, err := submitter.Submit(ctx, userID, Request{
		SourceFormat: item.SourceFormat,
		TargetFormat: item.TargetFormat,
		FileName:     item.FileName,
		Content:      item.Content,
		WebhookURL:   webhookURL,
		Options:      item.Options,
	})
	if err != nil {
		result.ErrorCode = itemErrorCode(err)
		result.ErrorMessage = err.Error()
		return result
	}

	result.Success = true
	result.Job = job
	return result
}

// itemErrorCode maps submission errors onto stable item error codes.
func itemErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return domain.CodeUnauthorized
	case errors.Is(err, domain.ErrQuotaExceeded):
		return domain.CodeQuotaExceeded
	case errors.Is(err, domain.ErrUnsupportedConversion):
		return domain.CodeValidation
	default:
		return domain.CodeBatchItemFailed
	}
}
