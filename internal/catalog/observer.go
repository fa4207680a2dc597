package catalog

import (
	"context"

	"moviescout/internal/domain"
)

const (
	StageSearchSettled = "search.settled"
	StageDedupeDone    = "dedupe.done"
	StageDetailSettled = "detail.settled"
	StageRunEmpty      = "run.empty"
	StageRunDone       = "run.done"
)

// Observer receives stage events of a pipeline run. Calls happen on the goroutine
// running the pipeline and must not block for long.
type Observer interface {
	OnStage(event domain.StageEvent)
}

type ObserverFunc func(event domain.StageEvent)

func (f ObserverFunc) OnStage(event domain.StageEvent) {
	f(event)
}

type observerKey struct{}

// ContextWithObserver attaches a per-request observer. It is notified in addition
// to the one configured with WithObserver.
func ContextWithObserver(ctx context.Context, observer Observer) context.Context {
	if observer == nil {
		return ctx
	}
	return context.WithValue(ctx, observerKey{}, observer)
}

func ObserverFromContext(ctx context.Context) (Observer, bool) {
	observer, ok := ctx.Value(observerKey{}).(Observer)
	return observer, ok && observer != nil
}

func (s *Service) emit(ctx context.Context, event domain.StageEvent) {
	if s.observer != nil {
		s.observer.OnStage(event)
	}
	if observer, ok := ObserverFromContext(ctx); ok {
		observer.OnStage(event)
	}
}
