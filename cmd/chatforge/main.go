// chatforge is the flow automation server: it ingests channel events,
// runs flow graphs, and parks conversations waiting on interactive
// replies.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chatforge/chatforge/internal/adapters"
	"github.com/chatforge/chatforge/internal/engine"
	"github.com/chatforge/chatforge/internal/executor"
	"github.com/chatforge/chatforge/internal/ingress"
	"github.com/chatforge/chatforge/internal/logging"
	"github.com/chatforge/chatforge/internal/registry"
	"github.com/chatforge/chatforge/internal/scheduler"
	"github.com/chatforge/chatforge/internal/store"
	"github.com/chatforge/chatforge/internal/trigger"
	"github.com/chatforge/chatforge/internal/validation"
)

func main() {
	cfg := loadConfig()

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	cacheTTL, err := time.ParseDuration(cfg.FlowCacheTTL)
	if err != nil {
		cacheTTL = 30 * time.Second
	}
	cache := store.NewFlowCache(st, cacheTTL)

	var reg registry.Registry
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		reg = registry.NewRedisRegistry(client)
		logger.Info("using redis suspension registry", "addr", cfg.RedisAddr)
	} else {
		reg = registry.NewMemoryRegistry()
	}

	adapterReg := &adapters.Registry{
		Messenger: adapters.NewLogMessenger(logger),
	}

	exec := executor.New(adapterReg, logger)
	eng := engine.New(cache, exec, reg, logger,
		engine.WithJournal(&journalStore{st}),
		engine.WithBaseURL(cfg.BaseURL),
	)
	router := trigger.NewRouter(eng, cache, logger)

	validator, err := validation.NewDocumentValidator()
	if err != nil {
		return err
	}

	sched := scheduler.New(st, eng, logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = sched.Stop() }()

	api := ingress.NewServer(router, eng, st, cache, validator, logger)
	defer api.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
