package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"moviescout/internal/domain"
)

var (
	ErrNoTerms    = errors.New("at least one search term is required")
	ErrSuperseded = errors.New("run superseded by a newer refresh")
)

// defaultMaxConcurrency bounds in-flight provider calls per stage.
const defaultMaxConcurrency = 8

type SearchProvider interface {
	Search(ctx context.Context, term string) ([]domain.SearchHit, error)
}

type DetailProvider interface {
	FetchDetail(ctx context.Context, id string) (domain.DetailRecord, error)
}

// Config is the explicit configuration handed to NewService.
type Config struct {
	APIKey         string
	Timeout        time.Duration
	MaxConcurrency int
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &domain.ConfigError{Key: "OMDB_API_KEY", Err: domain.ErrMissingCredential}
	}
	return nil
}

type Service struct {
	search           SearchProvider
	detail           DetailProvider
	timeout          time.Duration
	maxConcurrency   int
	retry            RetryConfig
	limiter          *rate.Limiter
	cacheDisabled    bool
	hitCache         *ttlCache[[]domain.SearchHit]
	detailCache      *ttlCache[domain.DetailRecord]
	redisCache       *RedisCacheBackend
	observer         Observer
	tracer           trace.Tracer
	failureThreshold int
	healthMu         sync.Mutex
	health           map[string]*capabilityHealth
	now              func() time.Time
	newRunID         func() string
}

type ServiceOption func(*Service)

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.hitCache.ttl = ttl
			s.detailCache.ttl = ttl
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithRetryConfig(cfg RetryConfig) ServiceOption {
	return func(s *Service) {
		s.retry = cfg
	}
}

// WithRateLimit caps outbound provider calls across both stages. rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) ServiceOption {
	return func(s *Service) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithFailureThreshold sets how many consecutive failures open a capability breaker. 0 disables it.
func WithFailureThreshold(threshold int) ServiceOption {
	return func(s *Service) {
		s.failureThreshold = threshold
	}
}

func WithObserver(observer Observer) ServiceOption {
	return func(s *Service) {
		s.observer = observer
	}
}

func withClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService refuses to build a pipeline without a credential so that no
// provider call is ever attempted unauthenticated.
func NewService(cfg Config, search SearchProvider, detail DetailProvider, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if search == nil || detail == nil {
		return nil, errors.New("search and detail providers are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}

	svc := &Service{
		search:           search,
		detail:           detail,
		timeout:          timeout,
		maxConcurrency:   concurrency,
		retry:            DefaultRetryConfig(),
		hitCache:         newTTLCache[[]domain.SearchHit](defaultCacheTTL, defaultCacheMaxEntries),
		detailCache:      newTTLCache[domain.DetailRecord](defaultCacheTTL, defaultCacheMaxEntries),
		tracer:           otel.Tracer("moviescout/catalog"),
		failureThreshold: defaultFailureThreshold,
		health:           make(map[string]*capabilityHealth),
		now:              time.Now,
		newRunID:         func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// callCapability runs one provider call behind the breaker and retry, with each
// attempt gated by the rate limiter, then records its health.
func (s *Service) callCapability(ctx context.Context, capability, key string, call func(context.Context) error) error {
	if err := s.checkCapability(capability, s.now()); err != nil {
		return err
	}
	startedAt := s.now()
	err := RetryWithBackoff(ctx, s.retry, func(attempt int) error {
		if attempt > 1 {
			slog.Debug("retrying provider call",
				slog.String("capability", capability),
				slog.String("key", key),
				slog.Int("attempt", attempt),
			)
		}
		// Every attempt, retries included, spends a token.
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return call(ctx)
	})
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		// Cancelled by the caller; says nothing about provider health.
		return err
	}
	s.recordCapabilityResult(capability, key, err, s.now().Sub(startedAt), s.now())
	return err
}
