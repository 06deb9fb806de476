package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fileforge/fileforge/internal/api/handler"
	"github.com/fileforge/fileforge/internal/domain"
	"github.com/fileforge/fileforge/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// Identity headers set by the gateway in front of this service. Request
// authentication happens there; this service only extracts the result.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	RoleAdmin = "ADMIN"
)

// LoggerMiddleware logs HTTP requests with slog
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP Request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.String("ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
			slog.Duration("latency", latency),
			slog.Int("body_size", c.Writer.Size()),
		)

		if len(c.Errors) > 0 {
			for _, e := range c.Errors {
				logger.Error("Request error",
					slog.String("error", e.Error()),
					slog.Uint64("type", uint64(e.Type)),
				)
			}
		}
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-User-ID, X-User-Role")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// IdentityMiddleware copies the gateway identity headers into the request
// context for handlers and the rate limiter.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(handler.CtxUserID, c.GetHeader(HeaderUserID))
		c.Set(handler.CtxIsAdmin, c.GetHeader(HeaderUserRole) == RoleAdmin)
		c.Next()
	}
}

// RequireUser rejects requests that arrived without a user identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(handler.CtxUserID) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": domain.ErrUnauthorized.Error(),
				"code":  domain.CodeUnauthorized,
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects requests from non-admin callers.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(handler.CtxIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin role required",
				"code":  domain.CodeUnauthorized,
			})
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware admits or rejects a request under the named policy.
// Resolver or counter failures admit the request; admission control must not
// take the API down with it.
func RateLimitMiddleware(resolver *ratelimit.Resolver, limiter *ratelimit.Limiter, policy string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(handler.CtxUserID)
		isAdmin := c.GetBool(handler.CtxIsAdmin)

		limits, err := resolver.EffectiveLimits(c.Request.Context(), userID, policy, isAdmin)
		if err != nil {
			logger.Error("Rate limit resolution failed",
				slog.String("user_id", userID),
				slog.String("policy", policy),
				slog.String("error", err.Error()),
			)
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), userID, policy, limits)
		if err != nil {
			logger.Error("Rate limit counter failed",
				slog.String("user_id", userID),
				slog.String("policy", policy),
				slog.String("error", err.Error()),
			)
			c.Next()
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"code":  domain.CodeRateLimited,
			})
			return
		}

		c.Next()
	}
}
