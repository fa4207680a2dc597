package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by providers when a lookup succeeded but carried no result.
	ErrNotFound = errors.New("no result")

	ErrMissingCredential = errors.New("provider api key is required")
)

// ConfigError reports a configuration problem that must stop the process before any I/O.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// StatusError is an unexpected HTTP status returned by a provider. RetryAfter
// carries the provider's Retry-After hint, if any.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("provider HTTP %d", e.Code)
	}
	return fmt.Sprintf("provider HTTP %d: %s", e.Code, body)
}
