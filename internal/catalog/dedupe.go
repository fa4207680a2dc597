package catalog

import (
	"strings"

	"moviescout/internal/domain"
)

// Dedupe keeps the first hit seen for each id. Hits without an id are dropped.
func Dedupe(hits []domain.SearchHit) []domain.SearchHit {
	out := make([]domain.SearchHit, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		id := strings.TrimSpace(hit.ID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		hit.ID = id
		out = append(out, hit)
	}
	return out
}
