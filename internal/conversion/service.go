package conversion

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fileforge/fileforge/internal/cloudstore"
	"github.com/fileforge/fileforge/internal/convert"
	"github.com/fileforge/fileforge/internal/domain"
	"github.com/fileforge/fileforge/internal/metrics"
	"github.com/google/uuid"
)

// JobRepository is the persistence surface the orchestrator needs
type JobRepository interface {
	Create(ctx context.Context, job *domain.ConversionJob) error
	Update(ctx context.Context, job *domain.ConversionJob) error
	GetByID(ctx context.Context, jobID string) (*domain.ConversionJob, error)
}

// QuotaGate is the advisory check-before / record-after usage gate
type QuotaGate interface {
	Check(ctx context.Context, userID string) error
	Record(ctx context.Context, userID string, bytesProcessed int64) error
}

// Notifier delivers best-effort job notifications
type Notifier interface {
	Notify(ctx context.Context, job *domain.ConversionJob)
}

// EventSink receives terminal-state job events
type EventSink interface {
	JobFinished(ctx context.Context, job *domain.ConversionJob)
}

// Request is one conversion submission. Content is the base64-encoded input.
type Request struct {
	SourceFormat string
	TargetFormat string
	FileName     string
	Content      string
	WebhookURL   string
	Options      convert.Options
}

// Service orchestrates a conversion job's full lifecycle: quota gate, job
// creation, converter invocation, result storage, webhook, events, metrics,
// and usage recording. One invocation owns a job's transitions end to end.
type Service struct {
	jobs     JobRepository
	quota    QuotaGate
	registry *convert.Registry
	store    cloudstore.Store
	notifier Notifier
	events   EventSink
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// Dependencies holds everything a Service needs
type Dependencies struct {
	Jobs     JobRepository
	Quota    QuotaGate
	Registry *convert.Registry
	Store    cloudstore.Store
	Notifier Notifier
	Events   EventSink
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

func NewService(deps Dependencies) *Service {
	m := deps.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	return &Service{
		jobs:     deps.Jobs,
		quota:    deps.Quota,
		registry: deps.Registry,
		store:    deps.Store,
		notifier: deps.Notifier,
		events:   deps.Events,
		metrics:  m,
		logger:   deps.Logger,
	}
}

// Submit runs one conversion synchronously within the caller's request.
// Authorization, quota, and unsupported-format failures are returned as
// errors before any job exists. Once the job is created, every downstream
// failure lands in the job itself as a FAILED terminal state; the returned
// job descriptor is the outcome either way.
func (s *Service) Submit(ctx context.Context, userID string, req Request) (*domain.ConversionJob, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	converter, err := s.registry.Resolve(req.SourceFormat, req.TargetFormat)
	if err != nil {
		return nil, err
	}

	// Advisory gate: consulted before the job exists, recorded after
	// terminal success. Concurrent submissions may overshoot; see Ledger.
	if err := s.quota.Check(ctx, userID); err != nil {
		return nil, err
	}

	job := domain.NewConversionJob(
		uuid.New().String(),
		userID,
		req.SourceFormat,
		req.TargetFormat,
		req.FileName,
		req.WebhookURL,
	)

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	if err := job.Begin(); err != nil {
		return nil, err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	s.logger.Info("Conversion started",
		slog.String("job_id", job.JobID),
		slog.String("user_id", userID),
		slog.String("source", job.SourceFormat),
		slog.String("target", job.TargetFormat),
	)

	s.metrics.ConversionStarted(job.SourceFormat, job.TargetFormat)
	started := time.Now()

	input, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		return s.failJob(ctx, job, started, fmt.Sprintf("invalid base64 input: %s", err.Error()))
	}

	output, err := converter.Convert(ctx, input, req.Options)
	if err != nil {
		if ctx.Err() != nil {
			return s.failJob(ctx, job, started, fmt.Sprintf("conversion canceled: %s", ctx.Err().Error()))
		}
		return s.failJob(ctx, job, started, err.Error())
	}

	outputName := outputFileName(req.FileName, job.TargetFormat)

	if s.store.Enabled() {
		key := fmt.Sprintf("users/%s/jobs/%s/%s", userID, job.JobID, outputName)
		if _, err := s.store.Upload(ctx, output, key, contentTypeFor(job.TargetFormat)); err != nil {
			return s.failJob(ctx, job, started, fmt.Sprintf("failed to store output: %s", err.Error()))
		}
		if err := job.CompleteCloud(outputName, key); err != nil {
			return nil, err
		}
	} else {
		if err := job.Complete(outputName, output); err != nil {
			return nil, err
		}
	}

	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	s.finish(ctx, job, started, len(output))

	// Usage is recorded only for completed conversions, sized by the output.
	if err := s.quota.Record(ctx, userID, int64(len(output))); err != nil {
		s.logger.Error("Failed to record quota usage",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
	}

	return job, nil
}

// failJob drives the job to FAILED, persists it, and runs the terminal
// side effects. The failed job is a normal, inspectable outcome for the
// caller, not an error.
func (s *Service) failJob(ctx context.Context, job *domain.ConversionJob, started time.Time, message string) (*domain.ConversionJob, error) {
	if err := job.Fail(message); err != nil {
		return nil, err
	}

	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	s.logger.Warn("Conversion failed",
		slog.String("job_id", job.JobID),
		slog.String("error", message),
	)

	s.finish(ctx, job, started, 0)
	return job, nil
}

// finish runs the fire-and-forget terminal side effects: webhook, event,
// metrics. None of them can change the persisted outcome.
func (s *Service) finish(ctx context.Context, job *domain.ConversionJob, started time.Time, outputBytes int) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, job)
	}
	if s.events != nil {
		s.events.JobFinished(ctx, job)
	}

	outcome := metrics.OutcomeCompleted
	if job.Status == domain.JobStatusFailed {
		outcome = metrics.OutcomeFailed
	}
	s.metrics.ConversionFinished(job.SourceFormat, job.TargetFormat, outcome, time.Since(started), outputBytes)
}

// Get returns a job scoped to its owner. A job owned by someone else is
// indistinguishable from a missing one.
func (s *Service) Get(ctx context.Context, userID, jobID string) (*domain.ConversionJob, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.UserID != userID {
		return nil, domain.ErrJobNotFound
	}

	return job, nil
}

// Download returns a completed job's output bytes, fetching from cloud
// storage when the job holds a reference instead of inline bytes.
func (s *Service) Download(ctx context.Context, userID, jobID string) ([]byte, string, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, "", err
	}

	if job.Status != domain.JobStatusCompleted {
		return nil, "", fmt.Errorf("%w: job %s is not completed", domain.ErrJobNotFound, jobID)
	}

	if job.StorageKey != "" {
		data, err := s.store.Download(ctx, job.StorageKey)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch stored output: %w", err)
		}
		return data, job.OutputFileName, nil
	}

	return job.OutputData, job.OutputFileName, nil
}

// outputFileName swaps the input file's extension for the target format.
func outputFileName(inputName, targetFormat string) string {
	base := inputName
	if idx := strings.LastIndex(inputName, "."); idx > 0 {
		base = inputName[:idx]
	}
	if base == "" {
		base = "output"
	}
	return base + "." + targetFormat
}

func contentTypeFor(format string) string {
	switch format {
	case "pdf":
		return "application/pdf"
	case "html":
		return "text/html"
	case "md":
		return "text/markdown"
	case "png":
		return "image/png"
	case "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
