package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue/v2"
	"github.com/teilomillet/wave/server/conversation"
)

// WindowStore is the in-process Store. Each session is a ring buffer guarded
// by its own mutex; the session map has a separate lock.
type WindowStore struct {
	window int // exchanges
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu       sync.Mutex
	turns    *queue.Queue[conversation.Turn]
	lastUsed time.Time
}

var _ Store = (*WindowStore)(nil)

// NewWindowStore keeps window exchanges (2*window turns) per session.
func NewWindowStore(window int) *WindowStore {
	if window <= 0 {
		window = 10
	}
	return &WindowStore{
		window:   window,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

func (s *WindowStore) capacity() int {
	return s.window * 2
}

// session returns the session for key, creating it if needed.
func (s *WindowStore) session(key string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[key]; ok {
		return sess
	}
	sess = &session{turns: queue.New[conversation.Turn](), lastUsed: s.now()}
	s.sessions[key] = sess
	return sess
}

func (s *WindowStore) Get(_ context.Context, user, character string) ([]conversation.Turn, error) {
	sess := s.session(Key(user, character))

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.lastUsed = s.now()
	out := make([]conversation.Turn, sess.turns.Length())
	for i := range out {
		out[i] = sess.turns.Get(i)
	}
	return out, nil
}

func (s *WindowStore) Append(_ context.Context, user, character string, turns ...conversation.Turn) error {
	sess := s.session(Key(user, character))

	sess.mu.Lock()
	defer sess.mu.Unlock()

	for _, t := range turns {
		sess.turns.Add(t)
		for sess.turns.Length() > s.capacity() {
			sess.turns.Remove()
		}
	}
	sess.lastUsed = s.now()
	return nil
}

func (s *WindowStore) Clear(_ context.Context, user, character string) (bool, error) {
	key := Key(user, character)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[key]; !ok {
		return false, nil
	}
	delete(s.sessions, key)
	return true, nil
}

func (s *WindowStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalSessions: len(s.sessions),
		Sessions:      make(map[string]SessionStats, len(s.sessions)),
	}
	for key, sess := range s.sessions {
		sess.mu.Lock()
		n := sess.turns.Length()
		sess.mu.Unlock()
		stats.Sessions[key] = SessionStats{MessageCount: n, WindowSize: s.window}
	}
	return stats, nil
}

func (s *WindowStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

func (s *WindowStore) Sweep(_ context.Context, idle time.Duration) (int, error) {
	if idle <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sess := range s.sessions {
		sess.mu.Lock()
		stale := sess.lastUsed.Before(cutoff)
		sess.mu.Unlock()
		if stale {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed, nil
}

func (s *WindowStore) Close() error {
	return nil
}
