package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/adapter/chromedp_fetcher"
	"github.com/user/content-crawler/internal/adapter/httpfetch"
	"github.com/user/content-crawler/internal/adapter/postgres"
	redis_adapter "github.com/user/content-crawler/internal/adapter/redis"
	"github.com/user/content-crawler/internal/delivery/http/handler"
	"github.com/user/content-crawler/internal/delivery/http/router"
	"github.com/user/content-crawler/internal/delivery/scheduler"
	"github.com/user/content-crawler/internal/extractor"
	"github.com/user/content-crawler/internal/usecase"
	"github.com/user/content-crawler/pkg/config"
	"github.com/user/content-crawler/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString("could not load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// --- Logger ---
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Service: "content-crawler"})
	if err != nil {
		os.Stderr.WriteString("could not build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database Connections ---
	dbpool, err := postgres.NewPool(ctx, cfg.PostgresURL, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatal("Unable to connect to database", zap.Error(err))
	}
	defer dbpool.Close()
	log.Info("PostgreSQL connection pool established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Unable to connect to Redis", zap.Error(err))
	}
	log.Info("Redis connection established")

	// --- Repositories ---
	jobRepo := postgres.NewJobRepo(dbpool)
	sourceRepo := postgres.NewSourceRepo(dbpool)
	queueRepo := redis_adapter.NewQueueRepo(rdb, 0)
	dedup := redis_adapter.NewDuplicateCache(rdb, postgres.NewDuplicateRepo(dbpool), cfg.DedupCacheTTL(), log)

	// --- Fetchers ---
	// Both fetchers draw from the same per-host budget.
	hostLimiter := httpfetch.NewHostLimiter(cfg.FetchHostRPS, cfg.FetchHostBurst, cfg.FetchHostConcurrency)
	fetcher, err := httpfetch.New(httpfetch.Config{
		Timeout:         cfg.FetchTimeout,
		MaxRedirects:    cfg.FetchMaxRedirects,
		MaxBodyBytes:    cfg.FetchMaxBodyBytes,
		UserAgents:      cfg.FetchUserAgents,
		Proxies:         cfg.FetchProxies,
		HostRPS:         cfg.FetchHostRPS,
		HostBurst:       cfg.FetchHostBurst,
		HostConcurrency: cfg.FetchHostConcurrency,
		RespectRobots:   cfg.FetchRespectRobots,
		Limiter:         hostLimiter,
	}, log)
	if err != nil {
		log.Fatal("Invalid fetcher configuration", zap.Error(err))
	}

	runnerOpts := []usecase.JobRunnerOption{}
	if cfg.BrowserEnabled {
		browser := chromedp_fetcher.NewChromedpFetcher(cfg.BrowserMaxTabs, cfg.BrowserTimeout, hostLimiter, log)
		defer browser.Close()
		runnerOpts = append(runnerOpts, usecase.WithBrowserFetcher(browser))
		log.Info("Browser fetcher enabled", zap.Int("max_tabs", cfg.BrowserMaxTabs))
	}

	// --- Use Cases ---
	runner := usecase.NewJobRunner(jobRepo, sourceRepo, dedup, fetcher, extractor.New(), log, runnerOpts...)
	manager := usecase.NewJobManager(jobRepo, queueRepo, dedup, log)
	dispatcher := usecase.NewDispatcher(queueRepo, runner, cfg.Workers, cfg.RunTimeout, log)

	dispatcherDone := make(chan error, 1)
	go func() { dispatcherDone <- dispatcher.Run(ctx) }()

	// --- Scheduler ---
	sched := scheduler.New(manager, scheduler.Options{
		PendingSchedule: cfg.PendingSchedule,
		PendingBatch:    cfg.PendingBatchSize,
		ReaperSchedule:  cfg.ReaperSchedule,
		StaleAfter:      cfg.StaleAfter(),
	}, log)
	if err := sched.Register(ctx); err != nil {
		log.Fatal("Invalid schedule", zap.Error(err))
	}
	sched.Start()

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(runner, manager, map[string]handler.HealthCheck{
		"postgres": dbpool.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, log)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router.New(apiHandler, log, cfg.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Could not listen on port", zap.String("port", cfg.ServerPort), zap.Error(err))
		}
	}()
	log.Info("Server started", zap.String("port", cfg.ServerPort))

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	sched.Stop()

	select {
	case err := <-dispatcherDone:
		if err != nil {
			log.Error("Dispatcher stopped with error", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		log.Warn("Dispatcher did not drain before shutdown timeout; in-flight jobs will be reaped")
	}

	log.Info("Server exiting")
}
