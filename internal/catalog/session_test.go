package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"moviescout/internal/domain"
)

// blockingSearch parks calls for "slow" until their context is cancelled.
type blockingSearch struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingSearch) Search(ctx context.Context, term string) ([]domain.SearchHit, error) {
	if term != "slow" {
		return []domain.SearchHit{{ID: "fast-1", Title: "Fast"}}, nil
	}
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSessionRefreshSupersedesInFlightRun(t *testing.T) {
	search := &blockingSearch{started: make(chan struct{})}
	detail := &fakeDetail{records: map[string]domain.DetailRecord{"fast-1": {ID: "fast-1", Title: "Fast"}}}
	svc := newTestService(t, search, detail)
	session := NewSession("s1", svc)

	firstErr := make(chan error, 1)
	go func() {
		_, err := session.Refresh(context.Background(), []string{"slow"}, true)
		firstErr <- err
	}()

	select {
	case <-search.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first refresh never reached the provider")
	}

	report, err := session.Refresh(context.Background(), []string{"fast"}, true)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if report.Generation != 2 {
		t.Fatalf("Generation = %d, want 2", report.Generation)
	}

	select {
	case err := <-firstErr:
		if !errors.Is(err, ErrSuperseded) {
			t.Fatalf("expected ErrSuperseded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("superseded refresh was not cancelled")
	}

	view := session.View(domain.FilterCriteria{}, domain.SortNone)
	if len(view.Items) != 1 || view.Items[0].ID != "fast-1" {
		t.Fatalf("view must hold the current generation only: %+v", view.Items)
	}
	if session.Generation() != 2 {
		t.Fatalf("Generation() = %d", session.Generation())
	}
	last, ok := session.LastRun()
	if !ok || last.Generation != 2 {
		t.Fatalf("unexpected last run: %+v", last)
	}
}

func TestSessionViewReappliesCriteriaWithoutIO(t *testing.T) {
	search := &fakeSearch{hits: map[string][]domain.SearchHit{"q": {{ID: "A"}, {ID: "B"}}}}
	detail := &fakeDetail{records: map[string]domain.DetailRecord{
		"A": {ID: "A", Title: "Alpha", Rating: "6.0"},
		"B": {ID: "B", Title: "Beta", Rating: "8.0"},
	}}
	svc := newTestService(t, search, detail)
	session := NewSession("s", svc)

	if _, err := session.Refresh(context.Background(), []string{"q"}, false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	view := session.View(domain.FilterCriteria{MinRating: ptr(7)}, domain.SortRatingDesc)
	if len(view.Items) != 1 || view.Items[0].ID != "B" {
		t.Fatalf("unexpected view: %+v", view.Items)
	}
	view = session.View(domain.FilterCriteria{}, domain.SortRatingDesc)
	if len(view.Items) != 2 || view.Items[0].ID != "B" {
		t.Fatalf("unexpected view: %+v", view.Items)
	}
	if search.callCount("q") != 1 {
		t.Fatalf("View must not call the provider")
	}
}

func TestSessionStoreEvictsIdleSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &fakeSearch{}, &fakeDetail{}, withClock(func() time.Time { return now }))
	store := NewSessionStore(svc, 10*time.Minute)

	store.Acquire("a")
	if same := store.Acquire("a"); same.ID() != "a" || store.Len() != 1 {
		t.Fatalf("Acquire must reuse sessions")
	}

	if removed := store.Evict(now.Add(5 * time.Minute)); removed != 0 {
		t.Fatalf("evicted %d fresh sessions", removed)
	}
	if removed := store.Evict(now.Add(11 * time.Minute)); removed != 1 {
		t.Fatalf("expected one eviction, got %d", removed)
	}
	if _, err := store.Get("a"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
