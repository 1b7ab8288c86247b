package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KanavDutta/tokenfence/api"
	"github.com/KanavDutta/tokenfence/metrics"
	"github.com/KanavDutta/tokenfence/middleware"
	"github.com/KanavDutta/tokenfence/pkg/tokenfence"
	"github.com/KanavDutta/tokenfence/store"
)

var serveFlags struct {
	configPath    string
	port          string
	redisAddr     string
	redisPassword string
	history       int
	watch         bool
	guard         string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured limiters over HTTP",
	Long: `Serve the limiters of a YAML config file over HTTP.

Endpoints:
  POST /check                  spend tokens from a limiter
  POST /time                   record time spent under granted tokens
  GET  /stats                  aggregated window stats (JSON)
  GET  /stats/{name}/history   recent finished windows of a limiter
  GET  /metrics                Prometheus metrics
  GET  /health                 health check

Examples:
  # Serve limits.yaml on :8080 with in-memory history
  tokenfence serve --config limits.yaml

  # Keep history in Redis and reload limits on file change
  tokenfence serve --config limits.yaml --redis localhost:6379 --watch`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.configPath, "config", "c", "limits.yaml", "limiter config file")
	serveCmd.Flags().StringVarP(&serveFlags.port, "port", "p", getEnv("PORT", "8080"), "listen port")
	serveCmd.Flags().StringVar(&serveFlags.redisAddr, "redis", getEnv("REDIS_ADDR", ""), "Redis address for window history (default in-memory)")
	serveCmd.Flags().StringVar(&serveFlags.redisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	serveCmd.Flags().IntVar(&serveFlags.history, "history", store.DefaultCapacity, "finished windows kept per limiter")
	serveCmd.Flags().BoolVar(&serveFlags.watch, "watch", false, "reload limits when the config file changes")
	serveCmd.Flags().StringVar(&serveFlags.guard, "guard", "", "limiter that guards the HTTP API itself (resolved at startup)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(os.Stderr, logLevel, logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := tokenfence.LoadConfigFromFile(serveFlags.configPath)
	if err != nil {
		return err
	}

	history, closeHistory, err := openHistory(ctx, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	recorder := metrics.NewRecorder()
	prom := metrics.NewPrometheus(nil)

	historyObserver := store.NewObserver(history, time.Second, 0, logger)
	defer historyObserver.Close()

	registry, err := tokenfence.NewRegistry(cfg,
		tokenfence.WithObserver(tokenfence.Observers(
			recorder,
			prom,
			historyObserver,
		)),
		tokenfence.WithRegistryLogger(logger),
	)
	if err != nil {
		return err
	}
	logger.Info("limiters loaded", "path", serveFlags.configPath, "limiters", registry.Names())

	if serveFlags.watch {
		w, err := tokenfence.NewWatcher(serveFlags.configPath, registry, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	handler, err := newServer(registry, recorder, prom, history, logger, serveFlags.guard)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + serveFlags.port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// openHistory picks the window history backend.
func openHistory(ctx context.Context, logger *slog.Logger) (store.Store, func(), error) {
	if serveFlags.redisAddr == "" {
		logger.Warn("using in-memory window history (lost on restart)")
		return store.NewMemoryStore(serveFlags.history), func() {}, nil
	}

	redisStore := store.NewRedisStore(store.RedisConfig{
		Addr:     serveFlags.redisAddr,
		Password: serveFlags.redisPassword,
		Capacity: serveFlags.history,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisStore.Ping(pingCtx); err != nil {
		redisStore.Close()
		return nil, nil, fmt.Errorf("connect to Redis at %s: %w", serveFlags.redisAddr, err)
	}
	logger.Info("connected to Redis", "addr", serveFlags.redisAddr)

	return redisStore, func() { redisStore.Close() }, nil
}

// newServer wires the HTTP routes. A non-empty guard names the limiter
// every request spends a token from.
func newServer(registry *tokenfence.Registry, recorder *metrics.Recorder, prom *metrics.Prometheus, history store.Store, logger *slog.Logger, guard string) (http.Handler, error) {
	mux := http.NewServeMux()

	api.NewHandler(registry, logger).Register(mux)
	api.NewStatsHandler(recorder, history, registry).Register(mux)
	mux.Handle("GET /metrics", prom.Handler())
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /{$}", rootHandler)

	if guard == "" {
		return mux, nil
	}

	limiter, ok := registry.Get(guard)
	if !ok {
		return nil, fmt.Errorf("%w: guard %s", tokenfence.ErrUnknownLimiter, guard)
	}
	return middleware.RateLimit(middleware.Config{
		Limiter: limiter,
		Logger:  logger,
		Timed:   true,
	})(mux), nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "tokenfence",
		"version": Version,
	})
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service": "Tokenfence",
		"version": Version,
		"endpoints": map[string]string{
			"POST /check":               "Spend tokens from a limiter",
			"POST /time":                "Record time spent under granted tokens",
			"GET /stats":                "Aggregated window stats",
			"GET /stats/{name}/history": "Recent finished windows",
			"GET /metrics":              "Prometheus metrics",
			"GET /health":               "Health check",
		},
	})
}
