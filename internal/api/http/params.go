package apihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"moviescout/internal/domain"
)

func parseSearchRequest(r *http.Request) (domain.SearchRequest, error) {
	terms, err := parseTerms(r)
	if err != nil {
		return domain.SearchRequest{}, err
	}
	criteria, err := parseFilterCriteria(r)
	if err != nil {
		return domain.SearchRequest{}, err
	}
	q := r.URL.Query()
	return domain.SearchRequest{
		Terms:    terms,
		Criteria: criteria,
		SortKey:  domain.NormalizeSortKey(q.Get("sortBy")),
		NoCache:  parseOptionalBool(q.Get("nocache")) || parseOptionalBool(q.Get("noCache")),
	}, nil
}

// parseTerms reads comma separated terms from "terms", falling back to "q".
func parseTerms(r *http.Request) ([]string, error) {
	q := r.URL.Query()
	raw := q.Get("terms")
	if strings.TrimSpace(raw) == "" {
		raw = q.Get("q")
	}
	terms := parseCSV(raw)
	if len(terms) == 0 {
		return nil, errors.New("at least one search term is required")
	}
	if len(terms) > maxTerms {
		return nil, fmt.Errorf("too many terms (max %d)", maxTerms)
	}
	for _, term := range terms {
		if len(term) > maxTermLength {
			return nil, fmt.Errorf("term too long (max %d characters)", maxTermLength)
		}
	}
	return terms, nil
}

func parseFilterCriteria(r *http.Request) (domain.FilterCriteria, error) {
	q := r.URL.Query()
	criteria := domain.FilterCriteria{
		TitleSubstring: strings.TrimSpace(q.Get("title")),
		Genre:          strings.TrimSpace(q.Get("genre")),
	}
	var err error
	if criteria.MinRating, err = parseOptionalFloat(r, "minRating"); err != nil {
		return criteria, errors.New("invalid minRating")
	}
	if criteria.MaxRuntimeMinutes, err = parseOptionalFloat(r, "maxRuntime"); err != nil {
		return criteria, errors.New("invalid maxRuntime")
	}
	return criteria, nil
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}

// parseOptionalFloat returns nil when key is absent. Negative values are rejected.
func parseOptionalFloat(r *http.Request, key string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &value, nil
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
