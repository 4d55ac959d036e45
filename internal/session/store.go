// Package session keeps chat conversations in memory. Sessions are keyed by
// uuid, trimmed to a fixed number of messages, and evicted once idle.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/sentra/internal/errors"
	"github.com/conneroisu/sentra/internal/logging"
	"github.com/conneroisu/sentra/internal/metrics"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of a conversation.
type Message struct {
	Role     string    `json:"role" yaml:"role"`
	Content  string    `json:"content" yaml:"content"`
	Time     time.Time `json:"time" yaml:"time"`
	Fallback bool      `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Session is a snapshot of a conversation.
type Session struct {
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
	Messages []Message `json:"messages"`
}

// Info summarizes a session without its messages.
type Info struct {
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
	Messages int       `json:"messages"`
}

// Config controls retention.
type Config struct {
	TTL             time.Duration
	MaxMessages     int
	CleanupInterval time.Duration
}

// DefaultConfig returns the retention used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		TTL:             30 * time.Minute,
		MaxMessages:     100,
		CleanupInterval: time.Minute,
	}
}

// Store holds sessions in memory. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	config   Config
	logger   logging.Logger
	now      func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store and starts its janitor when CleanupInterval and
// TTL are both positive. Call Stop to release the janitor.
func NewStore(config Config, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if config.MaxMessages <= 0 {
		config.MaxMessages = DefaultConfig().MaxMessages
	}

	s := &Store{
		sessions: make(map[string]*Session),
		config:   config,
		logger:   logger.WithComponent("session"),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if config.CleanupInterval > 0 && config.TTL > 0 {
		go s.janitor()
	} else {
		close(s.done)
	}

	return s
}

// Create starts an empty session with a fresh id.
func (s *Store) Create() Info {
	now := s.now()
	sess := &Session{ID: uuid.NewString(), Created: now, Updated: now}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	return info(sess)
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.ErrSessionNotFound(id)
	}
	return clone(sess), nil
}

// Append adds messages to a session, creating it when the id is unknown.
// The oldest messages are dropped once MaxMessages is exceeded.
func (s *Store) Append(id string, msgs ...Message) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	now := s.now()
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id, Created: now}
		s.sessions[id] = sess
	}
	for _, m := range msgs {
		if m.Time.IsZero() {
			m.Time = now
		}
		sess.Messages = append(sess.Messages, m)
	}
	if over := len(sess.Messages) - s.config.MaxMessages; over > 0 {
		sess.Messages = append([]Message(nil), sess.Messages[over:]...)
	}
	sess.Updated = now
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		metrics.ActiveSessions.Set(float64(count))
	}
	return nil
}

// History returns the last limit messages of a session, or all of them when
// limit is not positive. An unknown id has no history.
func (s *Store) History(id string, limit int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return []Message{}
	}
	msgs := sess.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]Message{}, msgs...)
}

// Delete removes a session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return errors.ErrSessionNotFound(id)
	}
	metrics.ActiveSessions.Set(float64(count))
	return nil
}

// List returns every session, most recently updated first.
func (s *Store) List() []Info {
	s.mu.RLock()
	out := make([]Info, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, info(sess))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Updated.Equal(out[j].Updated) {
			return out[i].ID < out[j].ID
		}
		return out[i].Updated.After(out[j].Updated)
	})
	return out
}

// Len returns the number of sessions held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle removes sessions not updated within the TTL and returns how many
// were removed.
func (s *Store) EvictIdle() int {
	if s.config.TTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.config.TTL)

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.Updated.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		metrics.ActiveSessions.Set(float64(count))
		s.logger.Debug(context.Background(), "Evicted idle sessions", "removed", removed, "remaining", count)
	}
	return removed
}

// Stop halts the janitor. It is safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Store) janitor() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.EvictIdle()
		case <-s.stop:
			return
		}
	}
}

// ValidateID reports whether id is a well-formed uuid.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidSessionID, "session id must be a uuid").
			WithContext("session_id", logging.SanitizeForLog(id))
	}
	return nil
}

func info(sess *Session) Info {
	return Info{ID: sess.ID, Created: sess.Created, Updated: sess.Updated, Messages: len(sess.Messages)}
}

func clone(sess *Session) *Session {
	c := *sess
	c.Messages = append([]Message{}, sess.Messages...)
	return &c
}
