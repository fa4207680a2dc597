package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"moviescout/internal/domain"
)

// searchTerms queries every term concurrently and waits for all of them to settle.
// Hits are concatenated in term order; a failed term contributes nothing.
func (s *Service) searchTerms(ctx context.Context, terms []string, noCache bool) ([]domain.Outcome[[]domain.SearchHit], []domain.SearchHit) {
	outcomes := fanOut(ctx, terms, s.maxConcurrency, func(ctx context.Context, term string) ([]domain.SearchHit, error) {
		return s.searchTerm(ctx, term, noCache)
	})

	total := 0
	for _, outcome := range outcomes {
		total += len(outcome.Value)
	}
	hits := make([]domain.SearchHit, 0, total)
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			slog.Warn("search term failed",
				slog.String("term", outcome.Key),
				slog.String("error", outcome.Err.Error()),
			)
			continue
		}
		hits = append(hits, outcome.Value...)
	}
	return outcomes, hits
}

func (s *Service) searchTerm(ctx context.Context, term string, noCache bool) ([]domain.SearchHit, error) {
	if !noCache {
		if hits, ok := s.cachedHits(ctx, term); ok {
			return hits, nil
		}
	}

	var hits []domain.SearchHit
	err := s.callCapability(ctx, capabilitySearch, term, func(ctx context.Context) error {
		result, err := s.search.Search(ctx, term)
		if err != nil {
			return err
		}
		hits = result
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		hits, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	s.storeHits(ctx, term, hits)
	return hits, nil
}

// normalizeTerms trims terms and drops blanks. Repeated terms are kept; Dedupe
// collapses their hits.
func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		out = append(out, term)
	}
	return out
}
