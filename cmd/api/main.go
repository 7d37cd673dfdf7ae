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

	"collections-platform/internal/audit"
	"collections-platform/internal/auth"
	"collections-platform/internal/calls"
	"collections-platform/internal/config"
	"collections-platform/internal/events"
	"collections-platform/internal/functions"
	"collections-platform/internal/observability"
	"collections-platform/internal/reconcile"
	"collections-platform/internal/reporting"
	"collections-platform/internal/sms"
	"collections-platform/internal/storage"
	"collections-platform/pkg/logger"
	"collections-platform/pkg/telemetry"
	"collections-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

const serviceName = "collections-platform"

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

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

	shutdownTracer := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		shutdownTracer, err = telemetry.InitTracer(serviceName, os.Stdout, log)
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observability.Register(reg)

	var sender sms.Sender = sms.Disabled{}
	if cfg.Twilio.Enabled() {
		sender = &sms.TwilioSender{
			Client: &sms.Client{
				AccountSID:          cfg.Twilio.AccountSID,
				AuthToken:           cfg.Twilio.AuthToken,
				HTTP:                &http.Client{Timeout: cfg.SMS.SendTimeout},
				MessagingServiceSID: cfg.Twilio.MessagingServiceSID,
				FromNumber:          cfg.Twilio.FromNumber,
				BaseURL:             cfg.Twilio.BaseURL,
			},
			Limiter: rate.NewLimiter(rate.Limit(cfg.Twilio.RPS), cfg.Twilio.Burst),
			Breaker: sms.NewBreaker(),
			Timeout: cfg.SMS.SendTimeout,
		}
	} else {
		log.Warn("twilio credentials missing, payment link SMS disabled")
	}

	resolver := calls.NewResolver()
	if cfg.Vapi.CallFallback == config.FallbackNone {
		resolver.Fallback = calls.NoFallback
	}

	dispatcher := functions.NewDispatcher(functions.Config{
		SMS:         sender,
		Template:    cfg.SMS.PaymentLinkTemplate,
		SendTimeout: cfg.SMS.SendTimeout,
		Guard:       functions.NewRedisSendGuard(rdb, 2*cfg.SMS.SendTimeout),
	})
	reconciler := reconcile.NewService(storage.NewSQLUnitOfWork(db, cfg.Billing.ReminderInterval), dispatcher, reconcile.Options{
		Resolver: resolver,
		Machine:  calls.NewStateMachine(),
		Dedup:    events.NewProcessedStore(rdb, cfg.Vapi.DedupTTL),
		Audit:    audit.NewService(audit.NewSQLRepo(db)),
	})
	callStore := calls.NewSQLStore(db)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, deps{
		cfg:        cfg,
		db:         db,
		rdb:        rdb,
		registry:   reg,
		auth:       authManager,
		reconciler: reconciler,
		calls:      callStore,
		reports:    reporting.NewService(reporting.StoreRepo{Calls: callStore}),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
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
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}
}
