package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/cryptopulse/internal/logger"
	"github.com/guttosm/cryptopulse/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const requestTimeout = 10 * time.Second

// NewRouter creates a Gin engine with routes configured.
//
// Responsibilities:
//   - Registers global middlewares (RequestID, Logger, Recovery, ErrorHandler).
//   - Adds request timeout handling (10 seconds).
//   - Mounts Swagger docs (/swagger/*any) and Prometheus metrics (/metrics).
//   - Configures API v1 routes (/api/v1), each request first charged to the
//     caller's token bucket.
//
// Note:
//   - Health and readiness endpoints (/healthz, /readyz) are registered in app.InitializeApp().
//
// Parameters:
//   - handler: HTTP handlers with the services already injected.
//   - limiter: per-client limiter guarding the /api/v1 group.
//   - trustedProxies: peers allowed to set X-Forwarded-For / X-Real-IP. With none,
//     the client identity is always the TCP peer address.
func NewRouter(handler *Handler, limiter middleware.ClientLimiter, trustedProxies []string) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		logger.L().Error().Err(err).Strs("trusted_proxies", trustedProxies).Msg("invalid trusted proxies, forwarded headers ignored")
		_ = router.SetTrustedProxies(nil)
	}

	// ─── Middlewares ───────────────────────────────
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RecoveryMiddleware(),
		middleware.ErrorHandler,
	)

	// ─── Timeout ──────────────────────────────────
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	// ─── Swagger & metrics ────────────────────────
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ─── API v1 ───────────────────────────────────
	v1 := router.Group("/api/v1", middleware.RateLimit(limiter))
	{
		v1.GET("/symbols", handler.ListSymbols)
		v1.GET("/symbols/:symbol/stats", handler.GetStats)
		v1.GET("/normalized-range", handler.ListNormalizedRanges)
		v1.GET("/normalized-range/highest", handler.GetHighestNormalizedRange)
		v1.POST("/import", handler.ImportCSV)
	}

	return router
}
