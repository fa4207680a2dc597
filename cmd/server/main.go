package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "moviescout/internal/api/http"
	"moviescout/internal/app"
	"moviescout/internal/catalog"
	"moviescout/internal/metrics"
	"moviescout/internal/providers/omdb"
	"moviescout/internal/telemetry"
)

var version = "dev"

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.SettingsFromEnv("moviescout", version))
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "moviescout"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("omdbBaseURL", cfg.OMDBBaseURL),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
		slog.Int("maxConcurrency", cfg.MaxConcurrency),
		slog.Float64("providerRateLimit", cfg.ProviderRateLimit),
	)

	redisClient := connectRedis(cfg, logger)

	omdbClient, err := omdb.New(omdb.Config{
		APIKey:    cfg.OMDBAPIKey,
		BaseURL:   cfg.OMDBBaseURL,
		UserAgent: cfg.UserAgent,
		Client:    &http.Client{Timeout: cfg.RequestTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	})
	if err != nil {
		logger.Error("omdb client init failed", slog.String("error", err.Error()))
		os.Exit(2)
	}

	catalogService, err := catalog.NewService(catalog.Config{
		APIKey:         cfg.OMDBAPIKey,
		Timeout:        cfg.RequestTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
	}, omdbClient, omdbClient, buildServiceOptions(cfg, redisClient)...)
	if err != nil {
		logger.Error("catalog init failed", slog.String("error", err.Error()))
		os.Exit(2)
	}
	sessions := catalog.NewSessionStore(catalogService, cfg.SessionIdle)

	api := apihttp.NewServer(catalogService,
		apihttp.WithLogger(logger),
		apihttp.WithSessions(sessions),
	)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// SSE and websocket connections outlive any fixed write timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sessions.RunJanitor(rootCtx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("moviescout started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	api.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logger.Info("moviescout stopped")
}

// connectRedis returns nil when Redis is not configured or unreachable; the
// service then runs with in-memory caching only.
func connectRedis(cfg app.Config, logger *slog.Logger) *redis.Client {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" || cfg.CacheDisabled {
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return client
}

func buildServiceOptions(cfg app.Config, redisClient *redis.Client) []catalog.ServiceOption {
	opts := []catalog.ServiceOption{
		catalog.WithRateLimit(cfg.ProviderRateLimit, cfg.ProviderBurst),
	}
	if cfg.CacheDisabled {
		return append(opts, catalog.WithCacheDisabled(true))
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, catalog.WithCacheTTL(cfg.CacheTTL))
	}
	if redisClient != nil {
		opts = append(opts, catalog.WithRedisCache(catalog.NewRedisCacheBackend(redisClient)))
	}
	return opts
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLogLevel(levelRaw)}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
