package omdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moviescout/internal/domain"
)

const (
	defaultBaseURL   = "https://www.omdbapi.com/"
	defaultUserAgent = "moviescout/1.0"
	maxResponseBytes = 512 * 1024
)

type Client struct {
	apiKey    string
	baseURL   string
	userAgent string
	http      *http.Client
}

type Config struct {
	APIKey    string
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

type searchItem struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	IMDbID string `json:"imdbID"`
	Type   string `json:"Type"`
}

type searchResponse struct {
	Search   []searchItem `json:"Search"`
	Response string       `json:"Response"`
	Error    string       `json:"Error"`
}

type detailResponse struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Runtime    string `json:"Runtime"`
	Genre      string `json:"Genre"`
	Actors     string `json:"Actors"`
	Plot       string `json:"Plot"`
	Poster     string `json:"Poster"`
	Awards     string `json:"Awards"`
	IMDbRating string `json:"imdbRating"`
	IMDbID     string `json:"imdbID"`
	Response   string `json:"Response"`
	Error      string `json:"Error"`
}

// New builds an OMDb client. A blank API key is a configuration error.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, &domain.ConfigError{Key: "OMDB_API_KEY", Err: domain.ErrMissingCredential}
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, &domain.ConfigError{Key: "OMDB_BASE_URL", Err: err}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		apiKey:    apiKey,
		baseURL:   baseURL,
		userAgent: userAgent,
		http:      httpClient,
	}, nil
}

// Search returns the movie hits for term. A term with no matches yields an empty slice.
func (c *Client) Search(ctx context.Context, term string) ([]domain.SearchHit, error) {
	params := url.Values{
		"s":    {strings.TrimSpace(term)},
		"type": {"movie"},
	}
	var response searchResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}
	if !strings.EqualFold(response.Response, "True") {
		if isEmptyAnswer(response.Error) {
			return []domain.SearchHit{}, nil
		}
		return nil, fmt.Errorf("omdb search %q: %s", term, response.Error)
	}

	hits := make([]domain.SearchHit, 0, len(response.Search))
	for _, item := range response.Search {
		id := strings.TrimSpace(item.IMDbID)
		if id == "" {
			continue
		}
		hits = append(hits, domain.SearchHit{
			ID:    id,
			Title: strings.TrimSpace(item.Title),
			Year:  clean(item.Year),
			Type:  clean(item.Type),
		})
	}
	return hits, nil
}

// FetchDetail returns the full record for id, or domain.ErrNotFound when OMDb
// does not know it. The record keeps the requested id even when OMDb answers
// with a different canonical one. Caching is left to the caller.
func (c *Client) FetchDetail(ctx context.Context, id string) (domain.DetailRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.DetailRecord{}, domain.ErrNotFound
	}

	params := url.Values{
		"i":    {id},
		"plot": {"short"},
	}
	var response detailResponse
	if err := c.get(ctx, params, &response); err != nil {
		return domain.DetailRecord{}, err
	}
	if !strings.EqualFold(response.Response, "True") {
		if isEmptyAnswer(response.Error) {
			return domain.DetailRecord{}, domain.ErrNotFound
		}
		return domain.DetailRecord{}, fmt.Errorf("omdb detail %s: %s", id, response.Error)
	}

	canonical := clean(response.IMDbID)
	if canonical == "" {
		return domain.DetailRecord{}, domain.ErrNotFound
	}
	if !strings.EqualFold(canonical, id) {
		slog.Debug("omdb answered with a different id",
			slog.String("requested", id),
			slog.String("returned", canonical),
		)
	}

	record := domain.DetailRecord{
		ID:      id,
		Title:   clean(response.Title),
		Year:    clean(response.Year),
		Genre:   clean(response.Genre),
		Rating:  clean(response.IMDbRating),
		Runtime: clean(response.Runtime),
		Actors:  clean(response.Actors),
		Plot:    clean(response.Plot),
		Poster:  clean(response.Poster),
		Awards:  clean(response.Awards),
	}
	return record, nil
}

func (c *Client) get(ctx context.Context, params url.Values, dest any) error {
	params.Set("apikey", c.apiKey)
	params.Set("r", "json")

	reqURL := c.baseURL
	if strings.Contains(reqURL, "?") {
		reqURL += "&" + params.Encode()
	} else {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &domain.StatusError{
			Code:       resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode omdb response: %w", err)
	}
	return nil
}

// isEmptyAnswer reports provider errors that only mean "nothing to show".
func isEmptyAnswer(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "too many results") ||
		strings.Contains(lower, "incorrect imdb id")
}

// clean maps the provider's N/A marker to an empty string.
func clean(value string) string {
	if domain.IsAbsent(value) {
		return ""
	}
	return strings.TrimSpace(value)
}

// parseRetryAfter understands the delta-seconds form only.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
