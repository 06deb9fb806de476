package router

import (
	"net/http"

	"github.com/fileforge/fileforge/internal/api/handler"
	"github.com/fileforge/fileforge/internal/domain"
	"github.com/fileforge/fileforge/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, limiter *ratelimit.Limiter) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())
	r.Use(IdentityMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "conversion-api-service",
		})
	})

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	conversionHandler := handler.NewConversionHandler(deps)
	adminHandler := handler.NewAdminHandler(deps)

	standardLimit := RateLimitMiddleware(deps.Limits, limiter, domain.PolicyStandard, deps.Logger)
	conversionLimit := RateLimitMiddleware(deps.Limits, limiter, domain.PolicyConversion, deps.Logger)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		conversions := v1.Group("/conversions")
		conversions.Use(RequireUser())
		{
			// POST /api/v1/conversions - Submit a single conversion
			conversions.POST("", conversionLimit, conversionHandler.SubmitConversion)

			// POST /api/v1/conversions/batch - Submit a batch of conversions
			conversions.POST("/batch", conversionLimit, conversionHandler.SubmitBatch)

			// GET /api/v1/conversions - List the caller's jobs
			conversions.GET("", standardLimit, conversionHandler.ListJobs)

			// GET /api/v1/conversions/:job_id - Get job details
			conversions.GET("/:job_id", standardLimit, conversionHandler.GetJob)

			// GET /api/v1/conversions/:job_id/download - Download completed output
			conversions.GET("/:job_id/download", standardLimit, conversionHandler.DownloadOutput)
		}

		admin := v1.Group("/admin")
		admin.Use(RequireUser(), RequireAdmin())
		{
			users := admin.Group("/users/:user_id")
			{
				users.GET("/quota", adminHandler.GetQuota)
				users.PUT("/quota", adminHandler.UpdateQuota)
				users.GET("/quota/history", adminHandler.QuotaHistory)

				users.GET("/ratelimit", adminHandler.GetRateLimitSettings)
				users.PUT("/ratelimit/tier", adminHandler.UpdateTier)
				users.PUT("/ratelimit/overrides/:policy", adminHandler.SetOverride)
				users.DELETE("/ratelimit/overrides/:policy", adminHandler.ClearOverride)
				users.DELETE("/ratelimit/overrides", adminHandler.ClearAllOverrides)
			}
		}
	}

	return r
}
