package convo

import (
	"context"
	"sync"
	"time"

	"bot-crm/internal/ai"
	"bot-crm/internal/metrics"
)

// Session is the in-memory state of one conversation. Fields are guarded by
// the session lock handed out by Sessions.Acquire.
type Session struct {
	ID         string
	State      State
	Prefer     ai.Role
	credential *ai.Credential
	transcript []Message

	mu       sync.Mutex
	lastSeen time.Time
}

// SetCredential stores a provider key for the lifetime of the session.
func (s *Session) SetCredential(c ai.Credential) {
	s.credential = &c
}

// ClearCredential forgets the provider key.
func (s *Session) ClearCredential() {
	s.credential = nil
}

// Credential returns the stored key for role, or "".
func (s *Session) Credential(role ai.Role) string {
	if s.credential == nil || s.credential.Provider != role {
		return ""
	}
	return s.credential.Secret
}

// Append adds messages to the transcript.
func (s *Session) Append(msgs ...Message) {
	s.transcript = append(s.transcript, msgs...)
}

// Transcript returns a copy of the transcript.
func (s *Session) Transcript() []Message {
	return append([]Message(nil), s.transcript...)
}

// Sessions keeps one Session per conversation ID. Each session is used by one
// message at a time; different sessions proceed independently.
type Sessions struct {
	mu      sync.Mutex
	items   map[string]*Session
	idleTTL time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewSessions creates a registry. idleTTL <= 0 disables eviction.
func NewSessions(idleTTL time.Duration, m *metrics.Metrics) *Sessions {
	return &Sessions{
		items:   make(map[string]*Session),
		idleTTL: idleTTL,
		now:     time.Now,
		metrics: m,
	}
}

// Acquire returns the locked session for id, creating it when needed. The
// caller must call release when done. A session ended or evicted while the
// caller waited for its lock is discarded and a fresh one is taken.
func (s *Sessions) Acquire(id string) (sess *Session, release func()) {
	for {
		s.mu.Lock()
		sess = s.items[id]
		if sess == nil {
			sess = &Session{ID: id, Prefer: ai.RolePrimary}
			s.items[id] = sess
			s.updateGauge()
		}
		s.mu.Unlock()

		sess.mu.Lock()
		if s.registered(id, sess) {
			break
		}
		sess.mu.Unlock()
	}
	sess.lastSeen = s.now()
	return sess, func() {
		sess.lastSeen = s.now()
		sess.mu.Unlock()
	}
}

func (s *Sessions) registered(id string, sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id] == sess
}

// Peek returns the locked session for id when it exists.
func (s *Sessions) Peek(id string) (*Session, func(), bool) {
	s.mu.Lock()
	sess, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		return nil, nil, false
	}
	sess.mu.Lock()
	return sess, sess.mu.Unlock, true
}

// End drops the session and its credential.
func (s *Sessions) End(id string) bool {
	s.mu.Lock()
	sess, ok := s.items[id]
	delete(s.items, id)
	s.updateGauge()
	s.mu.Unlock()
	if ok {
		sess.mu.Lock()
		sess.ClearCredential()
		sess.mu.Unlock()
	}
	return ok
}

// EvictIdle ends sessions not used for idleTTL. Sessions busy with a message
// are skipped.
func (s *Sessions) EvictIdle() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.items {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastSeen.Before(cutoff) {
			sess.ClearCredential()
			delete(s.items, id)
			evicted++
		}
		sess.mu.Unlock()
	}
	s.updateGauge()
	return evicted
}

// Run evicts idle sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle()
		}
	}
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sessions) updateGauge() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(len(s.items)))
	}
}
