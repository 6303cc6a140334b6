package main

import (
	"callpulse/internal/config"
	"callpulse/internal/httpapi"
	"callpulse/internal/ratelimit"
	"callpulse/internal/rbac"
	"callpulse/internal/webhook"
	"callpulse/internal/ws"

	"github.com/gin-gonic/gin"
)

type registerDeps struct {
	cfg      config.Config
	handlers httpapi.Handlers
	receiver *webhook.Receiver
	limiter  ratelimit.Limiter
	hub      *ws.Hub
	authMW   gin.HandlerFunc
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d registerDeps) {
	// public
	r.GET("/health", d.handlers.Health)

	// Voice platform webhooks (public). Rate limited and size bounded;
	// the platform offers no signature scheme to verify against.
	r.POST("/webhook/vapi",
		ratelimit.Middleware(d.limiter),
		webhook.BodyLimit(d.cfg.Ingest.MaxBodyBytes),
		d.receiver.Handle,
	)

	// Read-only dashboard API.
	api := r.Group("/api")
	{
		api.GET("/calls", d.handlers.ListCalls)
		api.GET("/calls/:id", d.handlers.GetCall)
		api.GET("/events", d.handlers.RecentEvents)
		api.GET("/stats", d.handlers.Stats)

		api.POST("/auth/login", d.handlers.Login)

		// Operator endpoints.
		admin := api.Group("")
		admin.Use(d.authMW)
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.POST("/calls/start", d.handlers.StartCall)
			admin.GET("/admin/ping", func(c *gin.Context) {
				c.JSON(200, gin.H{"status": "ok"})
			})
		}
	}

	// Live event feed for the dashboard.
	r.GET("/ws/events", d.hub.Serve)
}
