package handler

import (
	"log/slog"
	"net/http"

	"github.com/fileforge/fileforge/internal/api/dto"
	"github.com/fileforge/fileforge/internal/conversion"
	"github.com/fileforge/fileforge/internal/domain"
	"github.com/fileforge/fileforge/internal/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SubmitConversion handles POST /api/v1/conversions
// Runs a single conversion synchronously and returns the job descriptor.
func (h *ConversionHandler) SubmitConversion(c *gin.Context) {
	userID, _ := currentUser(c)

	var req dto.SubmitConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  domain.CodeValidation,
		})
		return
	}

	job, err := h.conversions.Submit(c.Request.Context(), userID, conversion.Request{
		SourceFormat: req.SourceFormat,
		TargetFormat: req.TargetFormat,
		FileName:     req.FileName,
		Content:      req.Content,
		WebhookURL:   req.WebhookURL,
		Options:      req.Options,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// A job that ran and failed is still a created job; only its status
	// carries the failure.
	c.JSON(http.StatusCreated, dto.FromJob(job))
}

// GetJob handles GET /api/v1/conversions/:job_id
// Returns the job descriptor, scoped to the calling user.
func (h *ConversionHandler) GetJob(c *gin.Context) {
	userID, _ := currentUser(c)
	jobID := c.Param("job_id")

	job, err := h.conversions.Get(c.Request.Context(), userID, jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// DownloadOutput handles GET /api/v1/conversions/:job_id/download
// Streams a completed job's output bytes.
func (h *ConversionHandler) DownloadOutput(c *gin.Context) {
	userID, _ := currentUser(c)
	jobID := c.Param("job_id")

	data, fileName, err := h.conversions.Download(c.Request.Context(), userID, jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// ListJobs handles GET /api/v1/conversions
// Lists the calling user's jobs with cursor pagination, newest first.
func (h *ConversionHandler) ListJobs(c *gin.Context) {
	userID, _ := currentUser(c)
	if userID == "" {
		respondError(c, h.logger, domain.ErrUnauthorized)
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
			"code":  domain.CodeValidation,
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	var statusFilter string
	if req.Status != "" {
		stored, ok := dto.StatusValue(req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "unknown status: " + req.Status,
				"code":  domain.CodeValidation,
			})
			return
		}
		statusFilter = stored
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
			"code":  domain.CodeValidation,
		})
		return
	}

	jobs, err := h.jobs.ListByUser(c.Request.Context(), userID, storage.JobFilter{
		Status:   statusFilter,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = dto.FromJob(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// SubmitBatch handles POST /api/v1/conversions/batch
// Runs up to the batch limit of conversions and reports per-item outcomes.
func (h *ConversionHandler) SubmitBatch(c *gin.Context) {
	userID, _ := currentUser(c)

	var req dto.SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  domain.CodeValidation,
		})
		return
	}

	items := make([]conversion.BatchItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = conversion.BatchItem{
			Type:         item.Type,
			SourceFormat: item.SourceFormat,
			TargetFormat: item.TargetFormat,
			FileName:     item.FileName,
			Content:      item.Content,
			Options:      item.Options,
		}
	}

	result, err := h.batches.Process(c.Request.Context(), userID, items, req.WebhookURL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	itemDTOs := make([]dto.BatchItemResultDTO, len(result.Items))
	for i, item := range result.Items {
		itemDTOs[i] = dto.BatchItemResultDTO{
			Index:        item.Index,
			Success:      item.Success,
			ErrorCode:    item.ErrorCode,
			ErrorMessage: item.ErrorMessage,
		}
		if item.Job != nil {
			jobDTO := dto.FromJob(item.Job)
			itemDTOs[i].Job = &jobDTO
		}
	}

	c.JSON(http.StatusOK, dto.SubmitBatchResponse{
		TotalItems:     result.TotalItems,
		SucceededCount: result.SucceededCount,
		FailedCount:    result.FailedCount,
		Items:          itemDTOs,
	})
}
