package jobs

import (
	"sync"
	"time"
)

// DefaultSessionTTL is how long an inactive session is kept.
const DefaultSessionTTL = 2 * time.Hour

// Session is the run state of one browser.
type Session struct {
	ID      string
	Manager *Manager

	lastSeen time.Time

	mu         sync.Mutex
	transcript Transcript
}

// Transcript is the downloadable text of the last finished run of a session.
type Transcript struct {
	RunID    string
	FileName string
	Text     string
}

// KeepTranscript remembers the transcript of a finished run, replacing the previous one.
func (s *Session) KeepTranscript(t Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = t
}

// Transcript returns the kept transcript of runID.
func (s *Session) Transcript(runID string) (Transcript, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if runID == "" || s.transcript.RunID != runID {
		return Transcript{}, false
	}
	return s.transcript, true
}

// Sessions is a registry of browser sessions keyed by cookie value.
type Sessions struct {
	mu    sync.Mutex
	items map[string]*Session
	ttl   time.Duration
	now   func() time.Time
}

// NewSessions creates an empty registry; ttl <= 0 uses DefaultSessionTTL.
func NewSessions(ttl time.Duration) *Sessions {
	return NewSessionsForTests(ttl, time.Now)
}

// NewSessionsForTests creates a registry with an injectable clock.
func NewSessionsForTests(ttl time.Duration, now func() time.Time) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		items: make(map[string]*Session),
		ttl:   ttl,
		now:   now,
	}
}

// Get returns the session for id, creating it on first use, and prunes
// sessions that expired.
func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	session, ok := s.items[id]
	if !ok {
		session = &Session{ID: id, Manager: NewManager()}
		s.items[id] = session
	}
	session.lastSeen = now
	return session
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Prune removes expired sessions that have no active run.
func (s *Sessions) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now())
}

func (s *Sessions) pruneLocked(now time.Time) int {
	removed := 0
	for id, session := range s.items {
		if now.Sub(session.lastSeen) < s.ttl || session.Manager.IsRunning() {
			continue
		}
		delete(s.items, id)
		removed++
	}
	return removed
}
