package domain

import "time"

// Outcome is the settled result of one unit of fan-out work: one search term
// or one detail id. Exactly one of Value or Err is meaningful.
type Outcome[T any] struct {
	Key   string
	Value T
	Err   error
}

func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

type EmptyReason string

const (
	EmptyReasonNone      EmptyReason = ""
	EmptyReasonNoHits    EmptyReason = "no_hits"
	EmptyReasonNoDetails EmptyReason = "no_details"
)

// RunReport is everything one pipeline run produced before the view stages.
type RunReport struct {
	RunID       string
	Generation  uint64
	Terms       []string
	Searches    []Outcome[[]SearchHit]
	RawHits     int
	Unique      []SearchHit
	Details     []Outcome[DetailRecord]
	Records     []DetailRecord
	Empty       bool
	EmptyReason EmptyReason
	StartedAt   time.Time
	Elapsed     time.Duration
}

type UnitStatus struct {
	Key   string `json:"key"`
	OK    bool   `json:"ok"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

type RunSummary struct {
	RunID       string       `json:"runId"`
	Generation  uint64       `json:"generation,omitempty"`
	Terms       []string     `json:"terms"`
	Searches    []UnitStatus `json:"searches"`
	RawHits     int          `json:"rawHits"`
	UniqueHits  int          `json:"uniqueHits"`
	Resolved    int          `json:"resolved"`
	Failed      []UnitStatus `json:"failedDetails,omitempty"`
	Empty       bool         `json:"empty"`
	EmptyReason EmptyReason  `json:"emptyReason,omitempty"`
	ElapsedMS   int64        `json:"elapsedMs"`
}

func (r RunReport) Summary() RunSummary {
	searches := make([]UnitStatus, 0, len(r.Searches))
	for _, outcome := range r.Searches {
		status := UnitStatus{Key: outcome.Key, OK: outcome.OK(), Count: len(outcome.Value)}
		if outcome.Err != nil {
			status.Error = outcome.Err.Error()
		}
		searches = append(searches, status)
	}
	var failed []UnitStatus
	for _, outcome := range r.Details {
		if outcome.OK() {
			continue
		}
		failed = append(failed, UnitStatus{Key: outcome.Key, Error: outcome.Err.Error()})
	}
	return RunSummary{
		RunID:       r.RunID,
		Generation:  r.Generation,
		Terms:       append([]string(nil), r.Terms...),
		Searches:    searches,
		RawHits:     r.RawHits,
		UniqueHits:  len(r.Unique),
		Resolved:    len(r.Records),
		Failed:      failed,
		Empty:       r.Empty,
		EmptyReason: r.EmptyReason,
		ElapsedMS:   r.Elapsed.Milliseconds(),
	}
}

type SearchRequest struct {
	Terms    []string
	Criteria FilterCriteria
	SortKey  SortKey
	NoCache  bool
}

type SearchResponse struct {
	Run  RunSummary `json:"run"`
	View View       `json:"view"`
}

// StageEvent reports progress of a pipeline run.
type StageEvent struct {
	RunID   string `json:"runId"`
	Stage   string `json:"stage"`
	Count   int    `json:"count"`
	Failed  int    `json:"failed,omitempty"`
	Message string `json:"message,omitempty"`
}

type CapabilityDiagnostics struct {
	Name                string     `json:"name"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	LastKey             string     `json:"lastKey,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}
