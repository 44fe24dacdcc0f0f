// Bounded conversational session state.
//
// Sessions give a gateway call multi-turn memory without unbounded growth:
// the message list is truncated to a fixed length (system message always
// retained at index 0), and idle sessions are reclaimed by a recency sweep
// so an abandoned session cannot leak forever.

package llm

import (
	"log/slog"
	"sync"
	"time"
)

// Session holds the ordered message history for one multi-turn interaction.
type Session struct {
	ID           string
	Messages     []ChatMessage
	CreatedAt    time.Time
	LastUsedAt   time.Time
	MessageCount int
}

// SessionContext is a bounded, ordered message history keyed by session ID.
// Safe for concurrent use.
type SessionContext struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	maxContext int
	idleTTL    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewSessionContext creates a session store. maxContext bounds the message
// list per session; idleTTL controls when the sweep reclaims idle sessions
// (zero disables sweeping).
func NewSessionContext(maxContext int, idleTTL time.Duration, logger *slog.Logger) *SessionContext {
	if maxContext < 2 {
		maxContext = 2 // system message plus at least one turn
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionContext{
		sessions:   make(map[string]*Session),
		maxContext: maxContext,
		idleTTL:    idleTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Append adds a message to a session, creating the session on first use,
// and truncates to the context bound.
func (s *SessionContext) Append(id string, msg ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id, CreatedAt: s.now()}
		s.sessions[id] = sess
	}

	sess.Messages = append(sess.Messages, msg)
	sess.MessageCount++
	sess.LastUsedAt = s.now()
	s.truncateLocked(sess)
}

// History returns a copy of the session's ordered message list.
// Returns an empty slice for an unknown session.
func (s *SessionContext) History(id string) []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return []ChatMessage{}
	}
	sess.LastUsedAt = s.now()

	copied := make([]ChatMessage, len(sess.Messages))
	copy(copied, sess.Messages)
	return copied
}

// Truncate enforces the context bound on a session: the system message at
// index 0 is retained, the oldest non-system messages are dropped.
func (s *SessionContext) Truncate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		s.truncateLocked(sess)
	}
}

func (s *SessionContext) truncateLocked(sess *Session) {
	if len(sess.Messages) <= s.maxContext {
		return
	}

	dropped := len(sess.Messages) - s.maxContext
	if len(sess.Messages) > 0 && sess.Messages[0].Role == "system" {
		// Keep system at 0, keep the most recent maxContext-1.
		kept := make([]ChatMessage, 0, s.maxContext)
		kept = append(kept, sess.Messages[0])
		kept = append(kept, sess.Messages[len(sess.Messages)-(s.maxContext-1):]...)
		sess.Messages = kept
	} else {
		sess.Messages = sess.Messages[len(sess.Messages)-s.maxContext:]
	}

	s.logger.Debug("session truncated",
		"session_id", sess.ID,
		"dropped", dropped,
		"len", len(sess.Messages))
}

// Delete destroys a session. Callers signal completion explicitly.
func (s *SessionContext) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}

// Len returns the current message count of a session.
func (s *SessionContext) Len(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return len(sess.Messages)
	}
	return 0
}

// Sweep reclaims sessions idle longer than the configured TTL and returns
// how many were removed. A zero TTL makes Sweep a no-op.
func (s *SessionContext) Sweep() int {
	if s.idleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idleTTL)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastUsedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("idle sessions reclaimed", "count", removed)
	}
	return removed
}
