// Package memory keeps per-session conversation history in process
// memory, the unit the orchestrator reads and appends around every
// chat turn.
package memory

import (
	"context"
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Config struct {
	// MaxMessages caps stored messages per session; oldest dropped
	// first. Zero means unbounded.
	MaxMessages int `yaml:"maxMessages"`

	// IdleTTL evicts sessions untouched for this long. Zero disables
	// eviction.
	IdleTTL       time.Duration `yaml:"idleTTL"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

type session struct {
	// turn serializes whole chat turns; mu guards the message slice.
	// They are distinct so a turn holder can still append and read.
	turn sync.Mutex

	mu         sync.Mutex
	messages   []Message
	createdAt  time.Time
	lastActive time.Time
}

// Store is a thread-safe conversation store. Sessions are created
// lazily on first append and reclaimed only by the idle sweep.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	cfg    Config
	cancel context.CancelFunc
}

func NewStore(cfg Config) *Store {
	s := &Store{
		sessions: make(map[string]*session),
		cfg:      cfg,
	}

	if cfg.IdleTTL > 0 && cfg.SweepInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.sweep(ctx)
	}

	return s
}

func (s *Store) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Store) session(id string, create bool) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if ok || !create {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess
	}

	now := time.Now()
	sess = &session{
		createdAt:  now,
		lastActive: now,
	}
	s.sessions[id] = sess

	return sess
}

// Append adds messages to the session, creating it if absent.
func (s *Store) Append(sessionID string, messages ...Message) {
	if len(messages) == 0 {
		return
	}

	sess := s.session(sessionID, true)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.messages = append(sess.messages, messages...)
	sess.lastActive = time.Now()

	if max := s.cfg.MaxMessages; max > 0 && len(sess.messages) > max {
		sess.messages = append([]Message(nil), sess.messages[len(sess.messages)-max:]...)
	}
}

// History returns up to maxMessages of the most recent messages in
// original order, or all of them if maxMessages <= 0. A missing
// session yields an empty slice.
func (s *Store) History(sessionID string, maxMessages int) []Message {
	sess := s.session(sessionID, false)
	if sess == nil {
		return []Message{}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	msgs := sess.messages
	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}

	out := make([]Message, len(msgs))
	copy(out, msgs)

	return out
}

// Clear empties the session's messages. The session object and its
// turn lock stay in place, so a turn already in flight keeps its
// exclusion. Clearing an unknown session is a no-op.
func (s *Store) Clear(sessionID string) {
	sess := s.session(sessionID, false)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.messages = nil
	sess.lastActive = time.Now()
}

// Acquire takes the session's turn lock, serializing whole chat turns
// on the same session id, and returns the release function. Turns on
// different sessions proceed independently.
func (s *Store) Acquire(sessionID string) func() {
	sess := s.session(sessionID, true)

	sess.turn.Lock()
	return sess.turn.Unlock
}

func (s *Store) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			cutoff := time.Now().Add(-s.cfg.IdleTTL)

			s.mu.Lock()
			for id, sess := range s.sessions {
				sess.mu.Lock()
				idle := sess.lastActive.Before(cutoff)
				sess.mu.Unlock()

				if idle {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
