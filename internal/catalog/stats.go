package catalog

import "moviescout/internal/domain"

// Summarize folds records into count, mean rating and genre histogram.
// Records without a rating count as 0 toward the mean.
func Summarize(records []domain.DetailRecord) domain.Statistics {
	stats := domain.Statistics{
		Count:          len(records),
		GenreHistogram: make(map[string]int),
	}
	if len(records) == 0 {
		return stats
	}

	var sum float64
	for _, record := range records {
		sum += record.RatingValue()
		for _, genre := range record.Genres() {
			stats.GenreHistogram[genre]++
		}
	}
	avg := sum / float64(len(records))
	stats.AverageRating = &avg
	return stats
}

// BuildView runs filter, sort and summarize over records. It performs no I/O.
func BuildView(records []domain.DetailRecord, criteria domain.FilterCriteria, key domain.SortKey) domain.View {
	filtered := ApplyFilters(records, criteria)
	sorted := SortRecords(filtered, key)
	if key == "" {
		key = domain.SortNone
	}
	return domain.View{
		Items:    sorted,
		Stats:    Summarize(sorted),
		Criteria: criteria,
		SortKey:  key,
	}
}
