package apihttp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"moviescout/internal/catalog"
	"moviescout/internal/domain"
)

type fakeCatalog struct {
	mu       sync.Mutex
	requests []domain.SearchRequest
	response domain.SearchResponse
	err      error
	events   []domain.StageEvent
}

func (f *fakeCatalog) Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, request)
	f.mu.Unlock()
	if observer, ok := catalog.ObserverFromContext(ctx); ok {
		for _, event := range f.events {
			observer.OnStage(event)
		}
	}
	return f.response, f.err
}

func (f *fakeCatalog) Diagnostics() []domain.CapabilityDiagnostics {
	return []domain.CapabilityDiagnostics{{Name: "detail"}, {Name: "search", ConsecutiveFailures: 2}}
}

func (f *fakeCatalog) lastRequest() domain.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestServer(t *testing.T, svc CatalogService, opts ...ServerOption) *Server {
	t.Helper()
	opts = append([]ServerOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	server := NewServer(svc, opts...)
	t.Cleanup(server.Close)
	return server
}

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload.Error.Code
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, &fakeCatalog{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSearchParsesQuery(t *testing.T) {
	svc := &fakeCatalog{response: domain.SearchResponse{
		Run:  domain.RunSummary{RunID: "run-1", Resolved: 1},
		View: domain.View{Items: []domain.DetailRecord{{ID: "A", Title: "Alpha"}}},
	}}
	server := newTestServer(t, svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/search?terms=batman,%20joker,,&title=dark&genre=Action&minRating=7.5&maxRuntime=150&sortBy=rating&nocache=1", nil)
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	got := svc.lastRequest()
	if len(got.Terms) != 2 || got.Terms[0] != "batman" || got.Terms[1] != "joker" {
		t.Fatalf("terms = %v", got.Terms)
	}
	if got.Criteria.TitleSubstring != "dark" || got.Criteria.Genre != "Action" {
		t.Fatalf("criteria = %+v", got.Criteria)
	}
	if got.Criteria.MinRating == nil || *got.Criteria.MinRating != 7.5 {
		t.Fatalf("minRating = %v", got.Criteria.MinRating)
	}
	if got.Criteria.MaxRuntimeMinutes == nil || *got.Criteria.MaxRuntimeMinutes != 150 {
		t.Fatalf("maxRuntime = %v", got.Criteria.MaxRuntimeMinutes)
	}
	if got.SortKey != domain.SortRatingDesc || !got.NoCache {
		t.Fatalf("sort/nocache = %q %v", got.SortKey, got.NoCache)
	}

	var response domain.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Run.RunID != "run-1" || len(response.View.Items) != 1 {
		t.Fatalf("unexpected response: %+v", response)
	}
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		method string
		status int
	}{
		{name: "missing terms", target: "/search", method: http.MethodGet, status: http.StatusBadRequest},
		{name: "bad rating", target: "/search?terms=a&minRating=high", method: http.MethodGet, status: http.StatusBadRequest},
		{name: "negative runtime", target: "/search?terms=a&maxRuntime=-1", method: http.MethodGet, status: http.StatusBadRequest},
		{name: "wrong method", target: "/search?terms=a", method: http.MethodPost, status: http.StatusMethodNotAllowed},
		{name: "too many terms", target: "/search?terms=" + strings.Repeat("x,", maxTerms+1), method: http.MethodGet, status: http.StatusBadRequest},
	}
	svc := &fakeCatalog{}
	server := newTestServer(t, svc)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
	if len(svc.requests) != 0 {
		t.Fatalf("invalid requests must not reach the catalog")
	}
}

func TestSearchMapsCatalogErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: catalog.ErrNoTerms, status: http.StatusBadRequest, code: "invalid_request"},
		{err: &domain.ConfigError{Key: "OMDB_API_KEY", Err: domain.ErrMissingCredential}, status: http.StatusServiceUnavailable, code: "misconfigured"},
		{err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range tests {
		server := newTestServer(t, &fakeCatalog{err: tc.err})
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?terms=a", nil))
		if rec.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.status)
		}
		if code := decodeError(t, rec.Body); code != tc.code {
			t.Fatalf("%v: code = %q, want %q", tc.err, code, tc.code)
		}
	}
}

func TestSearchHealthListsCapabilities(t *testing.T) {
	server := newTestServer(t, &fakeCatalog{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search/health", nil))

	var payload struct {
		Items []domain.CapabilityDiagnostics `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Items) != 2 || payload.Items[1].ConsecutiveFailures != 2 {
		t.Fatalf("unexpected items: %+v", payload.Items)
	}
}

func TestSearchStreamEmitsStagesThenResult(t *testing.T) {
	svc := &fakeCatalog{
		response: domain.SearchResponse{Run: domain.RunSummary{RunID: "r1"}},
		events: []domain.StageEvent{
			{RunID: "r1", Stage: catalog.StageSearchSettled, Count: 2},
			{RunID: "r1", Stage: catalog.StageRunDone, Count: 1},
		},
	}
	server := newTestServer(t, svc)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/search/stream?terms=a")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	var names []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
		}
	}
	want := []string{"bootstrap", "stage", "stage", "result", "done"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", names, want)
	}
}

func TestWebsocketReceivesRunSummaries(t *testing.T) {
	svc := &fakeCatalog{response: domain.SearchResponse{Run: domain.RunSummary{RunID: "ws-run"}}}
	server := newTestServer(t, svc)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer conn.Close()
	waitForClients(t, server.wsHub, 1)

	resp, err := http.Get(ts.URL + "/search?terms=a")
	if err != nil {
		t.Fatalf("GET search: %v", err)
	}
	resp.Body.Close()

	msg := readWSMessage(t, conn, 2*time.Second)
	if msg.Type != "run" {
		t.Fatalf("type = %q", msg.Type)
	}
	data, _ := json.Marshal(msg.Data)
	var run domain.RunSummary
	if err := json.Unmarshal(data, &run); err != nil || run.RunID != "ws-run" {
		t.Fatalf("unexpected run payload %s (%v)", data, err)
	}
}
