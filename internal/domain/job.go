package domain

import (
	"fmt"
	"strings"
	"time"
)

// Job status values. CloudStored is internal bookkeeping; externally a
// cloud-stored job is reported as Completed.
const (
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
)

// ConversionJob tracks one conversion attempt from submission to a terminal
// state. Transitions go through the methods below so the completedAt/output/
// error invariants hold after every persist.
type ConversionJob struct {
	JobID          string     `db:"job_id"`
	UserID         string     `db:"user_id"`
	SourceFormat   string     `db:"source_format"`
	TargetFormat   string     `db:"target_format"`
	InputFileName  string     `db:"input_file_name"`
	WebhookURL     string     `db:"webhook_url"`
	Status         string     `db:"status"`
	OutputFileName string     `db:"output_file_name"`
	OutputData     []byte     `db:"output_data"`
	StorageKey     string     `db:"storage_key"`
	ErrorMessage   string     `db:"error_message"`
	CreatedAt      time.Time  `db:"created_at"`
	CompletedAt    *time.Time `db:"completed_at"`
}

// NewConversionJob creates a job in PENDING. Formats are case-folded to
// lowercase and "jpg" is canonicalized to "jpeg".
func NewConversionJob(jobID, userID, sourceFormat, targetFormat, inputFileName, webhookURL string) *ConversionJob {
	return &ConversionJob{
		JobID:         jobID,
		UserID:        userID,
		SourceFormat:  NormalizeFormat(sourceFormat),
		TargetFormat:  NormalizeFormat(targetFormat),
		InputFileName: inputFileName,
		WebhookURL:    webhookURL,
		Status:        JobStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

// NormalizeFormat lowercases a format name and maps jpg to jpeg.
func NormalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "jpg" {
		return "jpeg"
	}
	return f
}

// IsTerminal reports whether the job has reached COMPLETED or FAILED.
func (j *ConversionJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Begin moves the job from PENDING to PROCESSING.
func (j *ConversionJob) Begin() error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusProcessing)
	}
	j.Status = JobStatusProcessing
	return nil
}

// Complete marks the job COMPLETED with inline output bytes.
func (j *ConversionJob) Complete(outputFileName string, output []byte) error {
	if err := j.terminalFrom(JobStatusProcessing, JobStatusCompleted); err != nil {
		return err
	}
	j.OutputFileName = outputFileName
	j.OutputData = output
	j.StorageKey = ""
	return nil
}

// CompleteCloud marks the job COMPLETED with output stored externally under
// storageKey. No inline bytes are retained.
func (j *ConversionJob) CompleteCloud(outputFileName, storageKey string) error {
	if err := j.terminalFrom(JobStatusProcessing, JobStatusCompleted); err != nil {
		return err
	}
	j.OutputFileName = outputFileName
	j.OutputData = nil
	j.StorageKey = storageKey
	return nil
}

// Fail marks the job FAILED with an error message. Any failure source
// (decode, convert, upload, cancellation) routes through here.
func (j *ConversionJob) Fail(message string) error {
	if j.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusFailed)
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = message
	j.OutputData = nil
	j.StorageKey = ""
	now := time.Now().UTC()
	j.CompletedAt = &now
	return nil
}

func (j *ConversionJob) terminalFrom(from, to string) error {
	if j.Status != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	now := time.Now().UTC()
	j.CompletedAt = &now
	return nil
}
