package catalog

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"moviescout/internal/domain"
)

// fanOut runs fn once per key with at most limit calls in flight and waits until
// every call has settled. Outcomes are index-aligned with keys; a failing key never
// cancels its siblings.
func fanOut[T any](ctx context.Context, keys []string, limit int, fn func(context.Context, string) (T, error)) []domain.Outcome[T] {
	outcomes := make([]domain.Outcome[T], len(keys))
	if len(keys) == 0 {
		return outcomes
	}
	if limit <= 0 {
		limit = defaultMaxConcurrency
	}

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(index int, key string) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[index] = domain.Outcome[T]{Key: key, Err: err}
				return
			}
			defer sem.Release(1)

			value, err := fn(ctx, key)
			if err != nil {
				outcomes[index] = domain.Outcome[T]{Key: key, Err: err}
				return
			}
			outcomes[index] = domain.Outcome[T]{Key: key, Value: value}
		}(i, key)
	}
	wg.Wait()
	return outcomes
}
