package omdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"moviescout/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{APIKey: "secret", BaseURL: server.URL + "/", Client: server.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) || !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected missing credential config error, got %v", err)
	}
}

func TestSearchParsesHits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "secret" || q.Get("s") != "batman" || q.Get("type") != "movie" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") != defaultUserAgent {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`{"Search":[
			{"Title":"Batman Begins","Year":"2005","imdbID":"tt0372784","Type":"movie","Poster":"N/A"},
			{"Title":"No id","Year":"2001","imdbID":"","Type":"movie"}
		],"totalResults":"2","Response":"True"}`))
	})

	hits, err := client.Search(context.Background(), " batman ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %+v", hits)
	}
	if hits[0].ID != "tt0372784" || hits[0].Title != "Batman Begins" || hits[0].Year != "2005" {
		t.Fatalf("unexpected hit: %+v", hits[0])
	}
}

func TestSearchNotFoundIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
	})
	hits, err := client.Search(context.Background(), "zzzz")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Fatalf("expected empty non-nil hits, got %#v", hits)
	}
}

func TestSearchProviderErrorIsReturned(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Request limit reached!"}`))
	})
	if _, err := client.Search(context.Background(), "batman"); err == nil {
		t.Fatalf("expected provider error")
	}
}

func TestSearchHTTPStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Invalid API key!"}`))
	})
	_, err := client.Search(context.Background(), "batman")
	var statusErr *domain.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
}

func TestSearchThrottledCarriesRetryAfter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := client.Search(context.Background(), "alien")
	var statusErr *domain.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.RetryAfter != 7*time.Second {
		t.Fatalf("RetryAfter = %v", statusErr.RetryAfter)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := map[string]time.Duration{
		"":                              0,
		"3":                             3 * time.Second,
		" 10 ":                          10 * time.Second,
		"-1":                            0,
		"Wed, 21 Oct 2015 07:28:00 GMT": 0,
	}
	for raw, want := range tests {
		if got := parseRetryAfter(raw); got != want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestFetchDetailMapsAbsentFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("i") != "tt0372784" || q.Get("plot") != "short" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"Title":"Batman Begins","Year":"2005","Runtime":"140 min",
			"Genre":"Action, Crime, Drama","Actors":"Christian Bale","Plot":"N/A","Poster":"N/A",
			"Awards":"N/A","imdbRating":"N/A","imdbID":"tt0372784","Response":"True"}`))
	})

	record, err := client.FetchDetail(context.Background(), "tt0372784")
	if err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	if record.Rating != "" || record.Plot != "" || record.Poster != "" {
		t.Fatalf("N/A fields must be empty: %+v", record)
	}
	if record.Runtime != "140 min" || record.RuntimeMinutes() != 140 {
		t.Fatalf("unexpected runtime: %+v", record)
	}
	if got := record.Genres(); len(got) != 3 || got[1] != "Crime" {
		t.Fatalf("unexpected genres: %v", got)
	}
}

func TestFetchDetailKeepsRequestedID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Title":"Alien","Year":"1979","imdbID":"tt0078748","Response":"True"}`))
	})

	first, err := client.FetchDetail(context.Background(), "tt0078748")
	if err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	second, err := client.FetchDetail(context.Background(), " tt9999999 ")
	if err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	if first.ID != "tt0078748" || second.ID != "tt9999999" {
		t.Fatalf("ids = %q, %q; want the requested ids", first.ID, second.ID)
	}
}

func TestFetchDetailWithoutIDIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Title":"Ghost","imdbID":"N/A","Response":"True"}`))
	})
	_, err := client.FetchDetail(context.Background(), "tt0000001")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchDetailAlwaysReachesProvider(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"Title":"Alien","imdbID":"tt0078748","Response":"True"}`))
	})
	for i := 0; i < 2; i++ {
		if _, err := client.FetchDetail(context.Background(), "tt0078748"); err != nil {
			t.Fatalf("FetchDetail: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("provider calls = %d, want 2", calls)
	}
}

func TestFetchDetailUnknownIDIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Incorrect IMDb ID."}`))
	})
	_, err := client.FetchDetail(context.Background(), "tt0000000")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchDetailMalformedPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Title":`))
	})
	if _, err := client.FetchDetail(context.Background(), "tt1"); err == nil {
		t.Fatalf("expected decode error")
	}
}
