package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"moviescout/internal/app"
	"moviescout/internal/catalog"
	"moviescout/internal/domain"
	"moviescout/internal/providers/omdb"
)

type catalogSearcher interface {
	Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error)
}

type commandContext struct {
	apiKeyFlag   string
	logLevelFlag string

	loadConfig func() app.Config
	newCatalog func(cfg app.Config) (catalogSearcher, error)

	configOnce sync.Once
	config     app.Config
	configErr  error
}

func defaultCommandContext() *commandContext {
	return &commandContext{
		loadConfig: app.LoadConfig,
		newCatalog: newOMDBCatalog,
	}
}

// ensureConfig loads the environment once and applies flag overrides. A missing
// API key is reported here, before any client is built.
func (c *commandContext) ensureConfig() (app.Config, error) {
	c.configOnce.Do(func() {
		cfg := c.loadConfig()
		if key := strings.TrimSpace(c.apiKeyFlag); key != "" {
			cfg.OMDBAPIKey = key
		}
		if level := strings.TrimSpace(c.logLevelFlag); level != "" {
			cfg.LogLevel = strings.ToLower(level)
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) catalog() (catalogSearcher, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.LogLevel, cfg.LogFormat))
	return c.newCatalog(cfg)
}

func newOMDBCatalog(cfg app.Config) (catalogSearcher, error) {
	client, err := omdb.New(omdb.Config{
		APIKey:    cfg.OMDBAPIKey,
		BaseURL:   cfg.OMDBBaseURL,
		UserAgent: cfg.UserAgent,
		Client:    &http.Client{Timeout: cfg.RequestTimeout},
	})
	if err != nil {
		return nil, err
	}
	return catalog.NewService(catalog.Config{
		APIKey:         cfg.OMDBAPIKey,
		Timeout:        cfg.RequestTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
	}, client, client,
		catalog.WithRateLimit(cfg.ProviderRateLimit, cfg.ProviderBurst),
		catalog.WithCacheTTL(cfg.CacheTTL),
		catalog.WithCacheDisabled(cfg.CacheDisabled),
	)
}

// newLogger writes to stderr so stdout stays clean for tables and JSON.
func newLogger(level, format string) *slog.Logger {
	lvl := slog.LevelWarn
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	options := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(strings.TrimSpace(format)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, options))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, options))
}
