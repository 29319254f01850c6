// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onlymatt43/ONLY-ACCESS/internal/config"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/ports/repository"
	pg "github.com/onlymatt43/ONLY-ACCESS/internal/infra/db/postgres"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/logging"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/metrics"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/ratelimit"
	red "github.com/onlymatt43/ONLY-ACCESS/internal/infra/redis"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/sched"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/store/jsonfile"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/web"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/worker"
	"github.com/onlymatt43/ONLY-ACCESS/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Runtime.Dev {
		log.Printf("[DEV MODE] Enabled")
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Store: Postgres when configured, JSON document otherwise ----
	var access repository.AccessRepository
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		access = pg.NewAccessRepo(pool)
		logger.Info().Msg("using postgres store")
	} else {
		store, err := jsonfile.Open(cfg.Store.Path, logger)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		access = store
		logger.Info().Str("path", cfg.Store.Path).Msg("using json file store")
	}

	// ---- Rate limiter: Redis when configured, in-process otherwise ----
	var limiter repository.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient, cfg.Limiter.MaxAttempts, cfg.Limiter.Window)
		logger.Info().Msg("using redis rate limiter")
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.Limiter.MaxAttempts, cfg.Limiter.Window)
	}

	// ---- Background workers ----
	pool := worker.NewPool(4, logger)
	pool.Start(ctx)
	defer pool.Stop()

	// ---- Use cases ----
	issueUC := usecase.NewIssueUseCase(access, logger)
	redeemUC := usecase.NewRedeemUseCase(access, limiter, pool.Submit, logger)
	sessionUC := usecase.NewSessionUseCase(access, logger)
	siteUC := usecase.NewSiteUseCase(access, logger)
	statsUC := usecase.NewStatsUseCase(access, logger)

	// ---- HTTP server ----
	secure := cfg.Admin.SecureCookie && !cfg.Runtime.Dev
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, secure, cfg.Admin.CookieDomain, cfg.Admin.SessionTTL)
	srv := web.NewServer(
		issueUC, redeemUC, sessionUC, siteUC, statsUC,
		auth,
		cfg.Admin.Username, cfg.Admin.PasswordHash,
		secure,
		logger,
	)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Expired code sweeper ----
	sweeper := sched.NewSweepWorker(cfg.Sweep.Interval, cfg.Sweep.Grace, access, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
