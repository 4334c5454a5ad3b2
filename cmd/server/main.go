package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/holiday-aggregator/internal/api"
	"github.com/neexbeast/holiday-aggregator/internal/cache"
	"github.com/neexbeast/holiday-aggregator/internal/config"
	"github.com/neexbeast/holiday-aggregator/internal/holiday"
	"github.com/neexbeast/holiday-aggregator/internal/ratelimit"
	"github.com/neexbeast/holiday-aggregator/internal/storage"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, parser, err := config.LoadServer(os.Args[1:])
	switch {
	case errors.Is(err, arg.ErrHelp):
		parser.WriteHelp(os.Stdout)
		return
	case errors.Is(err, arg.ErrVersion):
		fmt.Println(cfg.Version())
		return
	case err != nil:
		log.Error("invalid configuration", "err", err)
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx := context.Background()

	settings, err := cfg.Settings()
	if err != nil {
		return fmt.Errorf("provider settings: %w", err)
	}

	pingers := make(map[string]api.Pinger)

	// Redis backs the cache and rate limits when configured; otherwise both
	// live in process.
	var (
		store   holiday.Cache   = cache.NewMemory[[]byte]()
		limiter holiday.Limiter = ratelimit.NewMemory()
	)
	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		store = cache.NewRedis(redisClient, log)
		limiter = ratelimit.NewRedis(redisClient, log)
		pingers["redis"] = &redisPingerAdapter{client: redisClient}
		log.Info("using redis for cache and rate limits")
	}

	// PostgreSQL backs the holiday archive when configured.
	var archive api.HolidayArchive
	if cfg.DatabaseURL != "" {
		pool, err := storage.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		applied, err := storage.RunMigrations(ctx, pool, os.DirFS(cfg.MigrationsDir))
		if err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied", "files", applied)

		archive = storage.NewRepository(pool)
		pingers["db"] = pool
	}

	nager, calendarific, abstract := cfg.Clients()
	svc := holiday.NewService(holiday.Deps{
		Cache:        store,
		Limiter:      limiter,
		Nager:        nager,
		Calendarific: calendarific,
		Abstract:     abstract,
		Calendar:     holiday.NewOfflineCalendar(),
		Log:          log,
	}, settings)

	for _, p := range holiday.Providers {
		log.Info("provider configured", "provider", p.Slug(), "primary", p == settings.Primary)
	}

	handlers := api.NewHandlers(svc, archive, log)
	router := api.NewRouter(handlers, cfg.BearerToken, cfg.InboundRateLimit, pingers, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

// redisPingerAdapter adapts redis.Client to api.Pinger.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
