package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callpulse/internal/analytics"
	"callpulse/internal/archive"
	"callpulse/internal/auth"
	"callpulse/internal/calls"
	"callpulse/internal/config"
	"callpulse/internal/events"
	"callpulse/internal/funcs"
	"callpulse/internal/httpapi"
	"callpulse/internal/pricing"
	"callpulse/internal/ratelimit"
	"callpulse/internal/vapi"
	"callpulse/internal/webhook"
	"callpulse/internal/ws"
	"callpulse/pkg/logger"
	"callpulse/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/cors"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}
	creds, err := auth.NewAuthenticator(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	// Redis backs the webhook rate limiter. Without it each process falls
	// back to its own window, which is fine for a single instance.
	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.Ingest.RateLimit, cfg.Ingest.RateWindow)
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.Ingest.RateLimit, cfg.Ingest.RateWindow)
	}

	// Core state lives in memory; Postgres only archives terminal calls.
	store := calls.NewStore()
	aggregator := analytics.NewAggregator()
	eventLog := events.NewLog(cfg.EventLogCap())
	quotes := pricing.NewService(pricing.NewDefaultRepo())
	registry := funcs.NewBuiltinRegistry(cfg.Company, quotes)

	receiver := webhook.NewReceiver(store, aggregator, eventLog, registry)

	hub := ws.NewHub(log)
	go hub.Run(rootCtx)
	receiver.Broadcast = hub

	if cfg.ArchiveEnabled() {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		arch := archive.NewPostgres(db)
		if err := arch.EnsureSchema(rootCtx); err != nil {
			log.Error("archive schema init failed", "err", err)
			os.Exit(1)
		}
		receiver.Archive = arch
	}

	handlers := httpapi.NewHandlers()
	handlers.Store = store
	handlers.Aggregator = aggregator
	handlers.Log = eventLog
	handlers.Auth = authManager
	handlers.Creds = creds
	handlers.Vapi = cfg.Vapi
	handlers.Env = cfg.App.Env
	if cfg.Vapi.APIKey != "" {
		handlers.Dialer = vapi.NewClient(cfg.Vapi)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.FromGin(c).Error("panic recovered", "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "internal server error",
		})
	}))
	r.Use(logger.Middleware(log))

	registerRoutes(r, registerDeps{
		cfg:      cfg,
		handlers: handlers,
		receiver: receiver,
		limiter:  limiter,
		hub:      hub,
		authMW:   auth.RequireAccessToken(authManager),
	})

	corsOpts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}
	if len(cfg.App.CORSOrigins) > 0 {
		corsOpts.AllowedOrigins = cfg.App.CORSOrigins
	} else {
		corsOpts.AllowedOrigins = []string{"*"}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           cors.New(corsOpts).Handler(r),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
