package catalog

import (
	"strings"

	"golang.org/x/text/cases"

	"moviescout/internal/domain"
)

// ApplyFilters keeps records matching every set criterion, in input order.
// The input slice is never modified.
//
// A record without a rating parses to 0 and fails any positive MinRating, while a
// record without a runtime parses to 0 and always passes MaxRuntimeMinutes.
func ApplyFilters(records []domain.DetailRecord, criteria domain.FilterCriteria) []domain.DetailRecord {
	out := make([]domain.DetailRecord, 0, len(records))
	if criteria.IsZero() {
		return append(out, records...)
	}

	// A Caser keeps state and is not safe for concurrent use.
	fold := cases.Fold()
	title := fold.String(criteria.TitleSubstring)

	for _, record := range records {
		if title != "" && !strings.Contains(fold.String(record.Title), title) {
			continue
		}
		if criteria.Genre != "" && !strings.Contains(record.Genre, criteria.Genre) {
			continue
		}
		if criteria.MinRating != nil && record.RatingValue() < *criteria.MinRating {
			continue
		}
		if criteria.MaxRuntimeMinutes != nil && record.RuntimeMinutes() > *criteria.MaxRuntimeMinutes {
			continue
		}
		out = append(out, record)
	}
	return out
}
