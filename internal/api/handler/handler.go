package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fileforge/fileforge/internal/conversion"
	"github.com/fileforge/fileforge/internal/domain"
	"github.com/fileforge/fileforge/internal/quota"
	"github.com/fileforge/fileforge/internal/ratelimit"
	"github.com/fileforge/fileforge/internal/storage"
	"github.com/gin-gonic/gin"
)

// JobLister pages through a user's conversion jobs. Satisfied by
// storage.JobStorage.
type JobLister interface {
	ListByUser(ctx context.Context, userID string, filter storage.JobFilter) ([]domain.ConversionJob, error)
}

// Context keys set by the identity middleware.
const (
	CtxUserID  = "user_id"
	CtxIsAdmin = "is_admin"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Conversions *conversion.Service
	Batches     *conversion.BatchProcessor
	Jobs        JobLister
	Quotas      *quota.Ledger
	Limits      *ratelimit.Resolver
}

// ConversionHandler serves the user-facing conversion endpoints.
type ConversionHandler struct {
	logger      *slog.Logger
	conversions *conversion.Service
	batches     *conversion.BatchProcessor
	jobs        JobLister
}

// NewConversionHandler creates a new ConversionHandler instance
func NewConversionHandler(deps *Dependencies) *ConversionHandler {
	return &ConversionHandler{
		logger:      deps.Logger,
		conversions: deps.Conversions,
		batches:     deps.Batches,
		jobs:        deps.Jobs,
	}
}

// AdminHandler serves quota and rate-limit administration endpoints.
type AdminHandler struct {
	logger *slog.Logger
	quotas *quota.Ledger
	limits *ratelimit.Resolver
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(deps *Dependencies) *AdminHandler {
	return &AdminHandler{
		logger: deps.Logger,
		quotas: deps.Quotas,
		limits: deps.Limits,
	}
}

// currentUser returns the caller identity extracted by the middleware.
func currentUser(c *gin.Context) (string, bool) {
	return c.GetString(CtxUserID), c.GetBool(CtxIsAdmin)
}

// respondError maps domain errors onto HTTP status codes and a stable
// error payload.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	code := domain.CodeConversionFailed

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
		code = domain.CodeUnauthorized
	case errors.Is(err, domain.ErrJobNotFound):
		status = http.StatusNotFound
		code = domain.CodeNotFound
	case errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusTooManyRequests
		code = domain.CodeQuotaExceeded
	case errors.Is(err, domain.ErrUnsupportedConversion),
		errors.Is(err, domain.ErrUnknownPolicy),
		errors.Is(err, domain.ErrPartialOverride),
		errors.Is(err, conversion.ErrEmptyBatch),
		errors.Is(err, conversion.ErrBatchTooLarge):
		status = http.StatusBadRequest
		code = domain.CodeValidation
	}

	if status == http.StatusInternalServerError {
		logger.Error("Request failed", slog.String("error", err.Error()))
		c.JSON(status, gin.H{
			"error": "internal error",
			"code":  code,
		})
		return
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  code,
	})
}
