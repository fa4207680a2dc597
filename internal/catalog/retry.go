package catalog

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"moviescout/internal/domain"
)

// RetryConfig controls the exponential backoff of RetryWithBackoff.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig: 3 attempts, roughly 300ms then 600ms between them.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 300 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryWithBackoff calls fn with the 1-based attempt number until it succeeds,
// returns a final error, or MaxAttempts calls have been made. A provider asking
// for a longer pause via Retry-After is honoured up to MaxDelay.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func(attempt int) error) error {
	attempts := max(cfg.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil || !isTransientError(err) || attempt == attempts {
			return err
		}

		wait := jitter(backoffDelay(cfg, attempt))
		if hinted := retryAfterHint(err); hinted > wait {
			wait = hinted
		}
		if cfg.MaxDelay > 0 {
			wait = min(wait, cfg.MaxDelay)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// backoffDelay is the un-jittered pause after the given failed attempt.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	d := time.Duration(float64(cfg.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
	if cfg.MaxDelay > 0 && (d > cfg.MaxDelay || d < 0) {
		return cfg.MaxDelay
	}
	return d
}

func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.75 + rand.Float64()*0.5))
}

func retryAfterHint(err error) time.Duration {
	var statusErr *domain.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.RetryAfter
	}
	return 0
}

// isTransientError reports failures that may succeed on retry: network errors,
// provider throttling and 5xx answers. Empty results and cancellation are final.
func isTransientError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	var statusErr *domain.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 429 || statusErr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	lower := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "connection reset", "connection refused", "eof"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
