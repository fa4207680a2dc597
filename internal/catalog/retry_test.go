package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"moviescout/internal/domain"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestRetryWithBackoffRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetry(3), func(int) error {
		calls++
		if calls < 3 {
			return &domain.StatusError{Code: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoffStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetry(5), func(int) error {
		calls++
		return &domain.StatusError{Code: 401}
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected single failing call, got calls=%d err=%v", calls, err)
	}
}

func TestRetryWithBackoffReturnsLastError(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetry(2), func(int) error {
		calls++
		return io.ErrUnexpectedEOF
	})
	if !errors.Is(err, io.ErrUnexpectedEOF) || calls != 2 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestRetryWithBackoffHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, RetryConfig{MaxAttempts: 5, InitialDelay: time.Second, Multiplier: 2}, func(int) error {
		calls++
		cancel()
		return fmt.Errorf("dial: %w", io.EOF)
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestRetryWithBackoffPassesAttemptNumber(t *testing.T) {
	var seen []int
	_ = RetryWithBackoff(context.Background(), fastRetry(3), func(attempt int) error {
		seen = append(seen, attempt)
		return io.EOF
	})
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("attempts = %v", seen)
	}
}

func TestRetryWithBackoffCapsRetryAfterHint(t *testing.T) {
	calls := 0
	started := time.Now()
	err := RetryWithBackoff(context.Background(), fastRetry(2), func(int) error {
		calls++
		if calls == 1 {
			return &domain.StatusError{Code: 429, RetryAfter: time.Hour}
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("retry-after hint was not capped: %v", elapsed)
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond, Multiplier: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 100 * time.Millisecond},
		{attempt: 2, want: 200 * time.Millisecond},
		{attempt: 3, want: 350 * time.Millisecond},
		{attempt: 40, want: 350 * time.Millisecond},
	}
	for _, tc := range tests {
		if got := backoffDelay(cfg, tc.attempt); got != tc.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: domain.ErrNotFound, want: false},
		{err: context.Canceled, want: false},
		{err: context.DeadlineExceeded, want: true},
		{err: &domain.StatusError{Code: 429}, want: true},
		{err: &domain.StatusError{Code: 500}, want: true},
		{err: &domain.StatusError{Code: 404}, want: false},
		{err: errors.New("read: connection reset by peer"), want: true},
		{err: errors.New("invalid api key"), want: false},
	}
	for _, tc := range tests {
		if got := isTransientError(tc.err); got != tc.want {
			t.Errorf("isTransientError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestExponentialBlockDuration(t *testing.T) {
	if got := exponentialBlockDuration(5, 5); got != capabilityBlockBase {
		t.Fatalf("at threshold: %v", got)
	}
	if got := exponentialBlockDuration(6, 5); got != 2*capabilityBlockBase {
		t.Fatalf("one past threshold: %v", got)
	}
	if got := exponentialBlockDuration(50, 5); got != capabilityBlockMax {
		t.Fatalf("cap: %v", got)
	}
}
