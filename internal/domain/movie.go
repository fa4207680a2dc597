package domain

import (
	"sort"
	"strings"
)

// genreSeparator splits the provider's comma separated genre list.
const genreSeparator = ", "

type SearchHit struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Year  string `json:"year,omitempty"`
	Type  string `json:"type,omitempty"`
}

// DetailRecord is a fully resolved title. Genre, Rating and Runtime keep the
// provider's text; an empty string means the provider had no value.
type DetailRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Year    string `json:"year,omitempty"`
	Genre   string `json:"genre,omitempty"`
	Rating  string `json:"rating,omitempty"`
	Runtime string `json:"runtime,omitempty"`
	Actors  string `json:"actors,omitempty"`
	Plot    string `json:"plot,omitempty"`
	Poster  string `json:"poster,omitempty"`
	Awards  string `json:"awards,omitempty"`
}

func (r DetailRecord) HasGenre() bool {
	return !IsAbsent(r.Genre)
}

func (r DetailRecord) Genres() []string {
	if !r.HasGenre() {
		return nil
	}
	return strings.Split(r.Genre, genreSeparator)
}

func (r DetailRecord) RatingValue() float64 {
	return ParseRating(r.Rating)
}

func (r DetailRecord) RuntimeMinutes() float64 {
	return ParseRuntime(r.Runtime)
}

func (r DetailRecord) YearValue() int {
	return ParseYear(r.Year)
}

// FilterCriteria narrows a record set. Empty strings and nil bounds impose no constraint.
type FilterCriteria struct {
	TitleSubstring    string   `json:"title,omitempty"`
	Genre             string   `json:"genre,omitempty"`
	MinRating         *float64 `json:"minRating,omitempty"`
	MaxRuntimeMinutes *float64 `json:"maxRuntime,omitempty"`
}

func (c FilterCriteria) IsZero() bool {
	return c.TitleSubstring == "" &&
		c.Genre == "" &&
		c.MinRating == nil &&
		c.MaxRuntimeMinutes == nil
}

type SortKey string

const (
	SortNone       SortKey = "none"
	SortRatingDesc SortKey = "ratingDesc"
	SortYearDesc   SortKey = "yearDesc"
)

func NormalizeSortKey(raw string) SortKey {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ratingdesc", "rating":
		return SortRatingDesc
	case "yeardesc", "year":
		return SortYearDesc
	default:
		return SortNone
	}
}

// Statistics summarizes a record set. AverageRating is nil when Count is zero.
type Statistics struct {
	Count          int            `json:"count"`
	AverageRating  *float64       `json:"averageRating"`
	GenreHistogram map[string]int `json:"genreHistogram"`
}

type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// Genres returns the histogram ordered by count, most frequent first.
func (s Statistics) Genres() []GenreCount {
	items := make([]GenreCount, 0, len(s.GenreHistogram))
	for genre, count := range s.GenreHistogram {
		items = append(items, GenreCount{Genre: genre, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Genre < items[j].Genre
	})
	return items
}

type View struct {
	Items    []DetailRecord `json:"items"`
	Stats    Statistics     `json:"stats"`
	Criteria FilterCriteria `json:"criteria"`
	SortKey  SortKey        `json:"sortKey"`
}
