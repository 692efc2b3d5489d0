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

	"videocall-platform/internal/auth"
	"videocall-platform/internal/billing"
	"videocall-platform/internal/calls"
	"videocall-platform/internal/config"
	"videocall-platform/internal/history"
	"videocall-platform/internal/httpapi"
	"videocall-platform/internal/media"
	"videocall-platform/internal/rtctoken"
	"videocall-platform/pkg/logger"
	"videocall-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
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

	// Call-history archive: Postgres when configured, in-memory otherwise.
	var archiveRepo history.Repository = history.NewMemoryRepo()
	if cfg.DB.Host != "" {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		archiveRepo = history.NewPostgresRepo(db)
		log.Info("call history archive", "backend", "postgres")
	} else {
		log.Info("call history archive", "backend", "memory")
	}
	archive := history.NewService(archiveRepo)

	// Credit balances: Redis when configured, in-memory otherwise.
	var balances billing.Balances = billing.NewMemoryBalances()
	if cfg.Redis.Host != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		balances = billing.NewRedisBalances(rdb)
		log.Info("balance store", "backend", "redis")
	} else {
		log.Info("balance store", "backend", "memory")
	}

	earnings := billing.NewMemoryEarnings()
	tariff := billing.Tariff{
		TickDuration:         cfg.Call.TickDuration,
		CreditsPerTick:       1,
		EarningsPerTickMinor: cfg.Billing.EarningsPerTickMinor,
		Currency:             cfg.Billing.Currency,
	}

	coordinator := calls.NewCoordinator(calls.CoordinatorConfig{
		Registry:      calls.NewRegistry(),
		Balances:      balances,
		Earnings:      earnings,
		Tariff:        tariff,
		Archive:       archive,
		Media:         media.NewLogTransport(log),
		PendingTTL:    cfg.Call.PendingTTL,
		SweepInterval: cfg.Call.SweepInterval,
		Logger:        log,
	})
	go coordinator.Run(rootCtx)

	issuer := rtctoken.NewIssuer(cfg.RTC)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:        authManager,
		Calls:       coordinator,
		Balances:    balances,
		Earnings:    earnings,
		Tariff:      tariff,
		History:     archive,
		RTC:         issuer,
		PollSeconds: int(cfg.Call.PollInterval / time.Second),
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

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

	// Stop every live meter before the process exits so no tick fires
	// into a closed store.
	coordinator.Close(shutdownCtx)
}
