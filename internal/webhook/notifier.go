package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
)

// Payload is the JSON body posted to a job's webhook URL
type Payload struct {
	JobID          string     `json:"job_id"`
	UserID         string     `json:"user_id"`
	SourceFormat   string     `json:"source_format"`
	TargetFormat   string     `json:"target_format"`
	Status         string     `json:"status"`
	OutputFileName string     `json:"output_file_name,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Notifier delivers job notifications best-effort through a bounded worker
// pool. Delivery failures are logged and swallowed; they never affect the
// job's persisted outcome. A full queue drops the notification rather than
// blocking the conversion path.
type Notifier struct {
	client   *http.Client
	logger   *slog.Logger
	queue    chan delivery
	wg       sync.WaitGroup
	stopOnce sync.Once

	// mu orders enqueues against Close so a late Notify cannot send on the
	// closed queue.
	mu     sync.RWMutex
	closed bool
}

type delivery struct {
	url     string
	payload Payload
}

// Config holds notifier pool settings
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

func NewNotifier(cfg Config, logger *slog.Logger) *Notifier {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	n := &Notifier{
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		queue:  make(chan delivery, cfg.QueueSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}

	return n
}

func (n *Notifier) worker(workerNum int) {
	defer n.wg.Done()

	n.logger.Debug("Webhook worker started", slog.Int("worker_num", workerNum))

	for d := range n.queue {
		n.send(d)
	}
}

func (n *Notifier) send(d delivery) {
	body, err := json.Marshal(d.payload)
	if err != nil {
		n.logger.Error("Failed to marshal webhook payload",
			slog.String("job_id", d.payload.JobID),
			slog.Any("error", err),
		)
		return
	}

	req, err := http.NewRequest(http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("Failed to build webhook request",
			slog.String("job_id", d.payload.JobID),
			slog.Any("error", err),
		)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("Webhook delivery failed",
			slog.String("job_id", d.payload.JobID),
			slog.String("url", d.url),
			slog.Any("error", err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("Webhook endpoint returned non-success status",
			slog.String("job_id", d.payload.JobID),
			slog.String("url", d.url),
			slog.Int("status", resp.StatusCode),
		)
		return
	}

	n.logger.Debug("Webhook delivered",
		slog.String("job_id", d.payload.JobID),
		slog.String("url", d.url),
	)
}

// Notify enqueues a notification for the job's webhook URL. No-op when the
// job has no webhook URL configured.
func (n *Notifier) Notify(_ context.Context, job *domain.ConversionJob) {
	if job.WebhookURL == "" {
		return
	}

	d := delivery{
		url: job.WebhookURL,
		payload: Payload{
			JobID:          job.JobID,
			UserID:         job.UserID,
			SourceFormat:   job.SourceFormat,
			TargetFormat:   job.TargetFormat,
			Status:         job.Status,
			OutputFileName: job.OutputFileName,
			ErrorMessage:   job.ErrorMessage,
			CreatedAt:      job.CreatedAt,
			CompletedAt:    job.CompletedAt,
		},
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logger.Warn("Webhook notifier closed, dropping notification",
			slog.String("job_id", job.JobID),
		)
		return
	}

	select {
	case n.queue <- d:
	default:
		n.logger.Warn("Webhook queue full, dropping notification",
			slog.String("job_id", job.JobID),
		)
	}
}

// Close stops accepting notifications and waits for in-flight deliveries.
func (n *Notifier) Close() {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		n.mu.Unlock()
		close(n.queue)
	})
	n.wg.Wait()
}
