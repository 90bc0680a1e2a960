package conversation

import (
	"sync"
	"time"

	"github.com/victornm/codequest/internal/domain"
)

// session is one user's conversation: the dialogue state plus the
// registration fields collected so far. Sessions are ephemeral; nothing in
// them survives eviction.
type session struct {
	mu sync.Mutex

	state    State
	email    string
	username string
	pending  *domain.PendingAction

	lastActive time.Time
}

func (s *session) reset() {
	s.state = StateIdle
	s.email = ""
	s.username = ""
	s.pending = nil
}

// registry holds one session per user, created on first message and evicted
// after inactivity.
type registry struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[int64]*session)}
}

// acquire returns the user's session with its lock held. Messages for one
// user are processed strictly one at a time, in arrival order: a second
// message blocks here until the first finishes, including any registration
// grace wait. Other users' sessions are untouched.
func (r *registry) acquire(userID int64) *session {
	for {
		r.mu.Lock()
		s, ok := r.sessions[userID]
		if !ok {
			s = &session{lastActive: time.Now()}
			r.sessions[userID] = s
		}
		r.mu.Unlock()

		s.mu.Lock()

		// The session may have been evicted between the map read and the
		// lock. Drop it and start over with a fresh one.
		r.mu.Lock()
		current := r.sessions[userID]
		r.mu.Unlock()

		if current == s {
			return s
		}
		s.mu.Unlock()
	}
}

func (r *registry) release(s *session) {
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// evictIdle drops sessions with no activity for at least maxIdle. Sessions
// mid-message are skipped and picked up on a later sweep.
func (r *registry) evictIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if !s.mu.TryLock() {
			continue
		}

		if time.Since(s.lastActive) >= maxIdle {
			delete(r.sessions, id)
			evicted++
		}
		s.mu.Unlock()
	}

	return evicted
}
