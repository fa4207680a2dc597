package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"moviescout/internal/domain"
)

// resolveDetails fetches a detail record for every hit concurrently. Failed and
// empty lookups are dropped; records keep the order of their hits.
func (s *Service) resolveDetails(ctx context.Context, hits []domain.SearchHit, noCache bool) ([]domain.Outcome[domain.DetailRecord], []domain.DetailRecord) {
	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
	}

	outcomes := fanOut(ctx, ids, s.maxConcurrency, func(ctx context.Context, id string) (domain.DetailRecord, error) {
		return s.fetchDetail(ctx, id, noCache)
	})

	records := make([]domain.DetailRecord, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			level := slog.LevelWarn
			if errors.Is(outcome.Err, domain.ErrNotFound) {
				level = slog.LevelDebug
			}
			slog.Log(ctx, level, "detail lookup dropped",
				slog.String("id", outcome.Key),
				slog.String("error", outcome.Err.Error()),
			)
			continue
		}
		records = append(records, outcome.Value)
	}
	return outcomes, records
}

func (s *Service) fetchDetail(ctx context.Context, id string, noCache bool) (domain.DetailRecord, error) {
	if !noCache {
		if record, ok := s.cachedDetail(ctx, id); ok {
			return record, nil
		}
	}

	var record domain.DetailRecord
	err := s.callCapability(ctx, capabilityDetail, id, func(ctx context.Context) error {
		result, err := s.detail.FetchDetail(ctx, id)
		if err != nil {
			return err
		}
		if strings.TrimSpace(result.ID) == "" {
			return domain.ErrNotFound
		}
		record = result
		return nil
	})
	if err != nil {
		return domain.DetailRecord{}, err
	}
	s.storeDetail(ctx, id, record)
	return record, nil
}
