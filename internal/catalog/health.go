package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"moviescout/internal/domain"
	"moviescout/internal/metrics"
)

const (
	capabilitySearch = "search"
	capabilityDetail = "detail"
)

const (
	defaultFailureThreshold = 5
	capabilityBlockBase     = 30 * time.Second
	capabilityBlockMax      = 5 * time.Minute
)

// ErrCapabilityBlocked is returned while a capability sits behind an open breaker.
var ErrCapabilityBlocked = errors.New("provider capability temporarily unavailable")

type capabilityHealth struct {
	consecutiveFailures int
	blockedUntil        time.Time
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	lastKey             string
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

func (s *Service) checkCapability(capability string, now time.Time) error {
	if s.failureThreshold <= 0 {
		return nil
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := s.health[capability]
	if state == nil || state.blockedUntil.IsZero() || now.After(state.blockedUntil) {
		return nil
	}
	return fmt.Errorf("%w until %s: %s", ErrCapabilityBlocked, state.blockedUntil.UTC().Format(time.RFC3339), state.lastError)
}

func (s *Service) recordCapabilityResult(capability, key string, err error, latency time.Duration, now time.Time) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := s.health[capability]
	if state == nil {
		state = &capabilityHealth{}
		s.health[capability] = state
	}
	state.totalRequests++
	state.lastKey = strings.TrimSpace(key)
	if latency > 0 {
		state.lastLatency = latency
		metrics.ProviderRequestDuration.WithLabelValues(capability).Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	// An empty result is a healthy answer from the provider.
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		state.consecutiveFailures = 0
		state.blockedUntil = time.Time{}
		state.lastError = ""
		state.lastSuccessAt = now
		status := "ok"
		if err != nil {
			status = "empty"
		}
		metrics.ProviderRequestsTotal.WithLabelValues(capability, status).Inc()
		metrics.CapabilityAvailable.WithLabelValues(capability).Set(1)
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	if state.lastTimeout {
		status = "timeout"
	}
	metrics.ProviderRequestsTotal.WithLabelValues(capability, status).Inc()

	if s.failureThreshold > 0 && state.consecutiveFailures >= s.failureThreshold {
		state.blockedUntil = now.Add(exponentialBlockDuration(state.consecutiveFailures, s.failureThreshold))
		metrics.CapabilityAvailable.WithLabelValues(capability).Set(0)
	}
}

// exponentialBlockDuration doubles the block per failure past the threshold, capped at capabilityBlockMax.
func exponentialBlockDuration(consecutiveFailures, threshold int) time.Duration {
	exponent := consecutiveFailures - threshold
	if exponent < 0 {
		exponent = 0
	}
	d := capabilityBlockBase
	for i := 0; i < exponent; i++ {
		d *= 2
		if d > capabilityBlockMax {
			return capabilityBlockMax
		}
	}
	return d
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

func (s *Service) Diagnostics() []domain.CapabilityDiagnostics {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	items := make([]domain.CapabilityDiagnostics, 0, 2)
	for _, name := range []string{capabilitySearch, capabilityDetail} {
		item := domain.CapabilityDiagnostics{Name: name}
		if state := s.health[name]; state != nil {
			item.ConsecutiveFailures = state.consecutiveFailures
			if !state.blockedUntil.IsZero() {
				blockedUntil := state.blockedUntil
				item.BlockedUntil = &blockedUntil
			}
			item.LastError = state.lastError
			if !state.lastSuccessAt.IsZero() {
				lastSuccessAt := state.lastSuccessAt
				item.LastSuccessAt = &lastSuccessAt
			}
			if !state.lastFailureAt.IsZero() {
				lastFailureAt := state.lastFailureAt
				item.LastFailureAt = &lastFailureAt
			}
			item.LastLatencyMS = state.lastLatency.Milliseconds()
			item.LastTimeout = state.lastTimeout
			item.LastKey = state.lastKey
			item.TotalRequests = state.totalRequests
			item.TotalFailures = state.totalFailures
			item.TimeoutCount = state.timeoutCount
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}
