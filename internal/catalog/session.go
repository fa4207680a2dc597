package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"moviescout/internal/domain"
)

const defaultSessionIdle = 30 * time.Minute

// Session holds the latest resolved record set for one client. Each Refresh gets
// a new generation and cancels the run it replaces; only the current generation
// may store its records.
type Session struct {
	id  string
	svc *Service

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	records    []domain.DetailRecord
	lastRun    *domain.RunSummary
	lastAccess time.Time
}

func NewSession(id string, svc *Service) *Session {
	return &Session{id: id, svc: svc, lastAccess: svc.now()}
}

func (s *Session) ID() string {
	return s.id
}

// Generation returns the generation of the most recently started refresh.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Refresh runs the pipeline for terms. A refresh that is replaced before it
// finishes returns ErrSuperseded and leaves the stored records untouched.
func (s *Session) Refresh(ctx context.Context, terms []string, noCache bool) (domain.RunReport, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	generation := s.generation
	s.cancel = cancel
	s.lastAccess = s.svc.now()
	s.mu.Unlock()

	report, err := s.svc.run(runCtx, terms, noCache, generation)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		slog.Debug("session refresh superseded",
			slog.String("session", s.id),
			slog.Uint64("generation", generation),
			slog.Uint64("current", s.generation),
		)
		return domain.RunReport{}, ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		return report, err
	}
	s.records = append([]domain.DetailRecord(nil), report.Records...)
	summary := report.Summary()
	s.lastRun = &summary
	return report, nil
}

// View applies criteria and ordering to the stored records without any I/O.
func (s *Session) View(criteria domain.FilterCriteria, key domain.SortKey) domain.View {
	s.mu.Lock()
	records := s.records
	s.lastAccess = s.svc.now()
	s.mu.Unlock()
	return BuildView(records, criteria, key)
}

func (s *Session) LastRun() (domain.RunSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return domain.RunSummary{}, false
	}
	return *s.lastRun, true
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps sessions by id and evicts the ones left idle.
type SessionStore struct {
	svc  *Service
	idle time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore(svc *Service, idle time.Duration) *SessionStore {
	if idle <= 0 {
		idle = defaultSessionIdle
	}
	return &SessionStore{
		svc:      svc,
		idle:     idle,
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the session for id, creating it when absent.
func (st *SessionStore) Acquire(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	session, ok := st.sessions[id]
	if !ok {
		session = NewSession(id, st.svc)
		st.sessions[id] = session
	}
	return session
}

func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	session, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Evict drops sessions idle for longer than the store's idle timeout and
// returns how many were removed.
func (st *SessionStore) Evict(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, session := range st.sessions {
		if now.Sub(session.idleSince()) > st.idle {
			session.close()
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (st *SessionStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := st.Evict(st.svc.now()); removed > 0 {
				slog.Debug("evicted idle sessions", slog.Int("count", removed))
			}
		}
	}
}
