package dto

import (
	"github.com/fileforge/fileforge/internal/domain"
)

type QuotaDTO struct {
	UserID           string `json:"user_id"`
	Year             int    `json:"year"`
	Month            int    `json:"month"`
	ConversionsUsed  int    `json:"conversions_used"`
	ConversionsLimit int    `json:"conversions_limit"`
	BytesUsed        int64  `json:"bytes_used"`
	BytesLimit       int64  `json:"bytes_limit"`
	Exhausted        bool   `json:"exhausted"`
}

type UpdateQuotaRequest struct {
	ConversionsLimit int   `json:"conversions_limit" binding:"required,gt=0"`
	BytesLimit       int64 `json:"bytes_limit" binding:"required,gt=0"`
}

type QuotaHistoryResponse struct {
	Quotas []QuotaDTO `json:"quotas"`
}

type UpdateTierRequest struct {
	Tier string `json:"tier" binding:"required"`
}

type SetOverrideRequest struct {
	PermitLimit   *int `json:"permit_limit"`
	WindowMinutes *int `json:"window_minutes"`
}

type PolicyLimitDTO struct {
	PermitLimit   int `json:"permit_limit"`
	WindowMinutes int `json:"window_minutes"`
}

type RateLimitSettingsDTO struct {
	UserID             string          `json:"user_id"`
	Tier               string          `json:"tier"`
	StandardOverride   *PolicyLimitDTO `json:"standard_override,omitempty"`
	ConversionOverride *PolicyLimitDTO `json:"conversion_override,omitempty"`
}

func FromQuota(q *domain.UsageQuota) QuotaDTO {
	return QuotaDTO{
		UserID:           q.UserID,
		Year:             q.Year,
		Month:            q.Month,
		ConversionsUsed:  q.ConversionsUsed,
		ConversionsLimit: q.ConversionsLimit,
		BytesUsed:        q.BytesUsed,
		BytesLimit:       q.BytesLimit,
		Exhausted:        q.Exhausted(),
	}
}

func FromSettings(s *domain.UserRateLimitSettings) RateLimitSettingsDTO {
	return RateLimitSettingsDTO{
		UserID:             s.UserID,
		Tier:               s.Tier,
		StandardOverride:   fromPolicyLimit(s.StandardOverride),
		ConversionOverride: fromPolicyLimit(s.ConversionOverride),
	}
}

func fromPolicyLimit(p *domain.PolicyLimit) *PolicyLimitDTO {
	if p == nil {
		return nil
	}
	return &PolicyLimitDTO{
		PermitLimit:   p.PermitLimit,
		WindowMinutes: p.WindowMinutes,
	}
}
