package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
)

// Broker is the message transport; satisfied by the shared rabbitmq client.
type Broker interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// JobEvent is the message published when a job reaches a terminal state.
type JobEvent struct {
	JobID        string     `json:"job_id"`
	UserID       string     `json:"user_id"`
	SourceFormat string     `json:"source_format"`
	TargetFormat string     `json:"target_format"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	EmittedAt    time.Time  `json:"emitted_at"`
}

// Publisher emits job lifecycle events. Publishing is best-effort: broker
// failures are logged and never reach the orchestrator's outcome. A nil
// Publisher is valid and publishes nothing.
type Publisher struct {
	broker Broker
	logger *slog.Logger
}

func NewPublisher(broker Broker, logger *slog.Logger) *Publisher {
	return &Publisher{broker: broker, logger: logger}
}

// JobFinished publishes the job's terminal state.
func (p *Publisher) JobFinished(ctx context.Context, job *domain.ConversionJob) {
	if p == nil || p.broker == nil {
		return
	}

	event := JobEvent{
		JobID:        job.JobID,
		UserID:       job.UserID,
		SourceFormat: job.SourceFormat,
		TargetFormat: job.TargetFormat,
		Status:       job.Status,
		ErrorMessage: job.ErrorMessage,
		CompletedAt:  job.CompletedAt,
		EmittedAt:    time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal job event",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
		return
	}

	if err := p.broker.Publish(ctx, body, "application/json"); err != nil {
		p.logger.Warn("Failed to publish job event",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
	}
}
