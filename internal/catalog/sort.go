package catalog

import (
	"sort"

	"moviescout/internal/domain"
)

// SortRecords returns a sorted copy. Ties keep their input order; SortNone and
// unknown keys return the records in input order.
func SortRecords(records []domain.DetailRecord, key domain.SortKey) []domain.DetailRecord {
	out := append([]domain.DetailRecord(nil), records...)
	if out == nil {
		out = []domain.DetailRecord{}
	}

	var value func(domain.DetailRecord) float64
	switch key {
	case domain.SortRatingDesc:
		value = domain.DetailRecord.RatingValue
	case domain.SortYearDesc:
		value = func(r domain.DetailRecord) float64 { return float64(r.YearValue()) }
	default:
		return out
	}

	type keyed struct {
		record domain.DetailRecord
		value  float64
	}
	items := make([]keyed, len(out))
	for i, record := range out {
		items[i] = keyed{record: record, value: value(record)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].value > items[j].value
	})
	for i, item := range items {
		out[i] = item.record
	}
	return out
}
