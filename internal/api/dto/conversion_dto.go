package dto

import (
	"strings"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
)

type SubmitConversionRequest struct {
	SourceFormat string            `json:"source_format" binding:"required"`
	TargetFormat string            `json:"target_format" binding:"required"`
	FileName     string            `json:"file_name"`
	Content      string            `json:"content" binding:"required"`
	WebhookURL   string            `json:"webhook_url"`
	Options      map[string]string `json:"options"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	SourceFormat   string `json:"source_format"`
	TargetFormat   string `json:"target_format"`
	InputFileName  string `json:"input_file_name,omitempty"`
	OutputFileName string `json:"output_file_name,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

type BatchItemRequest struct {
	Type         string            `json:"type" binding:"required"`
	SourceFormat string            `json:"source_format" binding:"required"`
	TargetFormat string            `json:"target_format" binding:"required"`
	FileName     string            `json:"file_name"`
	Content      string            `json:"content" binding:"required"`
	Options      map[string]string `json:"options"`
}

type SubmitBatchRequest struct {
	WebhookURL string             `json:"webhook_url"`
	Items      []BatchItemRequest `json:"items" binding:"required"`
}

type BatchItemResultDTO struct {
	Index        int     `json:"index"`
	Success      bool    `json:"success"`
	Job          *JobDTO `json:"job,omitempty"`
	ErrorCode    string  `json:"error_code,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

type SubmitBatchResponse struct {
	TotalItems     int                  `json:"total_items"`
	SucceededCount int                  `json:"succeeded_count"`
	FailedCount    int                  `json:"failed_count"`
	Items          []BatchItemResultDTO `json:"items"`
}

// statusLabels maps stored status values onto the externally exposed names.
var statusLabels = map[string]string{
	domain.JobStatusPending:    "Pending",
	domain.JobStatusProcessing: "Processing",
	domain.JobStatusCompleted:  "Completed",
	domain.JobStatusFailed:     "Failed",
}

// StatusLabel returns the external name for a stored job status.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// StatusValue maps an external status name back onto the stored value.
// Matching is case-insensitive.
func StatusValue(label string) (string, bool) {
	for stored, external := range statusLabels {
		if strings.EqualFold(label, external) {
			return stored, true
		}
	}
	return "", false
}

// FromJob builds the external job descriptor. Inline output bytes and storage
// keys never leave through this path; the download endpoint serves them.
func FromJob(job *domain.ConversionJob) JobDTO {
	d := JobDTO{
		JobID:          job.JobID,
		Status:         StatusLabel(job.Status),
		SourceFormat:   job.SourceFormat,
		TargetFormat:   job.TargetFormat,
		InputFileName:  job.InputFileName,
		OutputFileName: job.OutputFileName,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		d.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return d
}
