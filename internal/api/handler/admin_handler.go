package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fileforge/fileforge/internal/api/dto"
	"github.com/fileforge/fileforge/internal/domain"
	"github.com/gin-gonic/gin"
)

const defaultHistoryMonths = 12

// GetQuota handles GET /api/v1/admin/users/:user_id/quota
// Returns the user's current-month quota, creating it on first access.
func (h *AdminHandler) GetQuota(c *gin.Context) {
	userID := c.Param("user_id")

	quota, err := h.quotas.Current(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuota(quota))
}

// UpdateQuota handles PUT /api/v1/admin/users/:user_id/quota
// Replaces the current month's limits; usage counters are untouched.
func (h *AdminHandler) UpdateQuota(c *gin.Context) {
	userID := c.Param("user_id")

	var req dto.UpdateQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  domain.CodeValidation,
		})
		return
	}

	if err := h.quotas.UpdateLimits(c.Request.Context(), userID, req.ConversionsLimit, req.BytesLimit); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Quota limits updated",
		slog.String("user_id", userID),
		slog.Int("conversions_limit", req.ConversionsLimit),
		slog.Int64("bytes_limit", req.BytesLimit),
	)

	quota, err := h.quotas.Current(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuota(quota))
}

// QuotaHistory handles GET /api/v1/admin/users/:user_id/quota/history
// Returns recent monthly quota records, newest first.
func (h *AdminHandler) QuotaHistory(c *gin.Context) {
	userID := c.Param("user_id")

	months := defaultHistoryMonths
	if raw := c.Query("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "months must be a positive integer",
				"code":  domain.CodeValidation,
			})
			return
		}
		months = parsed
	}

	quotas, err := h.quotas.History(c.Request.Context(), userID, months)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	quotaDTOs := make([]dto.QuotaDTO, len(quotas))
	for i := range quotas {
		quotaDTOs[i] = dto.FromQuota(&quotas[i])
	}

	c.JSON(http.StatusOK, dto.QuotaHistoryResponse{Quotas: quotaDTOs})
}

// GetRateLimitSettings handles GET /api/v1/admin/users/:user_id/ratelimit
// Returns the user's tier and any per-policy overrides.
func (h *AdminHandler) GetRateLimitSettings(c *gin.Context) {
	userID := c.Param("user_id")

	settings, err := h.limits.Settings(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSettings(settings))
}

// UpdateTier handles PUT /api/v1/admin/users/:user_id/ratelimit/tier
// Moves the user to another tier. Overrides survive a tier change.
func (h *AdminHandler) UpdateTier(c *gin.Context) {
	userID := c.Param("user_id")

	var req dto.UpdateTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  domain.CodeValidation,
		})
		return
	}

	if !domain.ValidTier(req.Tier) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown tier: " + req.Tier,
			"code":  domain.CodeValidation,
		})
		return
	}

	if err := h.limits.UpdateTier(c.Request.Context(), userID, req.Tier); err != nil {
		respondError(c, h.logger, err)
		return
	}

	settings, err := h.limits.Settings(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSettings(settings))
}

// SetOverride handles PUT /api/v1/admin/users/:user_id/ratelimit/overrides/:policy
// Installs a complete (limit, window) override for one policy.
func (h *AdminHandler) SetOverride(c *gin.Context) {
	userID := c.Param("user_id")
	policy := c.Param("policy")

	var req dto.SetOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  domain.CodeValidation,
		})
		return
	}

	if err := h.limits.SetOverride(c.Request.Context(), userID, policy, req.PermitLimit, req.WindowMinutes); err != nil {
		respondError(c, h.logger, err)
		return
	}

	settings, err := h.limits.Settings(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSettings(settings))
}

// ClearAllOverrides handles DELETE /api/v1/admin/users/:user_id/ratelimit/overrides
// Drops both policy overrides so tier defaults apply everywhere.
func (h *AdminHandler) ClearAllOverrides(c *gin.Context) {
	userID := c.Param("user_id")

	if err := h.limits.ClearOverrides(c.Request.Context(), userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ClearOverride handles DELETE /api/v1/admin/users/:user_id/ratelimit/overrides/:policy
// Removes one policy's override so the tier default applies again.
func (h *AdminHandler) ClearOverride(c *gin.Context) {
	userID := c.Param("user_id")
	policy := c.Param("policy")

	if err := h.limits.SetOverride(c.Request.Context(), userID, policy, nil, nil); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
