package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"collections-platform/internal/auth"
	"collections-platform/internal/calls"
	"collections-platform/internal/config"
	"collections-platform/internal/httpapi"
	"collections-platform/internal/rbac"
	"collections-platform/internal/reconcile"
	"collections-platform/internal/reporting"
	"collections-platform/internal/vapi"
	"collections-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type deps struct {
	cfg        config.Config
	db         *sql.DB
	rdb        *redis.Client
	registry   *prometheus.Registry
	auth       *auth.Manager
	reconciler *reconcile.Service
	calls      calls.Store
	reports    *reporting.Service
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := utils.HealthCheck(ctx, d.db, time.Second); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "postgres"})
			return
		}
		if err := utils.PingRedis(ctx, d.rdb, time.Second); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "redis"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	// Call-platform webhooks (public, optionally secret-protected).
	{
		h := vapi.WebhookHandler{Events: d.reconciler, Secret: d.cfg.Vapi.WebhookSecret}
		r.POST("/webhooks/vapi/events", h.HandleEvent)
	}

	h := httpapi.Handlers{
		Auth:       d.auth,
		Calls:      d.calls,
		Reports:    d.reports,
		AllowLogin: !d.cfg.IsProduction(),
	}

	// Token issuance sits outside the authenticated group.
	r.POST("/v1/auth/login", h.Login)

	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(d.auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
		})

		callLogs := v1.Group("/calls")
		callLogs.Use(httpapi.RequireIdentityAndAnyRole(rbac.RoleCollector, rbac.RoleAnalyst)...)
		{
			callLogs.GET("", h.ListCalls)
			callLogs.GET("/:id", h.GetCall)
			callLogs.GET("/external/:external_id", h.GetCallByExternalID)
		}

		reports := v1.Group("/reports")
		reports.Use(httpapi.RequireIdentityAndAnyRole(rbac.RoleAnalyst, rbac.RoleAuditor)...)
		{
			reports.GET("/calls", h.CallsReport)
		}
	}
}
