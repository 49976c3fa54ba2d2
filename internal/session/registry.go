// ABOUTME: Concurrency-safe registry of per-client push channels with lifecycle tracking.
// ABOUTME: Handles connect/replace/disconnect, targeted send, broadcast, and idle timeout.

package session

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultClientID keys sessions whose caller supplied no client id.
	DefaultClientID = "default"

	// DefaultIdleTimeout is how long a session may sit without activity
	// before the janitor tears it down.
	DefaultIdleTimeout = 60 * time.Second

	// eventBufferSize is the channel buffer for each session's push channel.
	eventBufferSize = 64
)

// Terminal session outcomes.
var (
	ErrSessionClosed = errors.New("session closed")
	ErrChannelFull   = errors.New("push channel full")
	ErrSendFailed    = errors.New("push send failed")
	ErrReplaced      = errors.New("session replaced by newer connection")
	ErrIdleTimeout   = errors.New("session idle timeout")
)

// Event is a named payload pushed to a client over its session channel.
type Event struct {
	Name string
	Data any
}

// Session is one client's open, ordered, server-to-client push handle.
// It is owned exclusively by the Registry; transports consume Events until
// the channel closes.
type Session struct {
	ClientID  string
	CreatedAt time.Time

	mu           sync.Mutex
	lastActivity time.Time
	closed       bool
	closeErr     error
	events       chan Event
}

func newSession(clientID string) *Session {
	now := time.Now()
	return &Session{
		ClientID:     clientID,
		CreatedAt:    now,
		lastActivity: now,
		events:       make(chan Event, eventBufferSize),
	}
}

// Events returns the push channel. It is closed when the session ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Err returns the terminal outcome after the session has been finalized:
// nil for completion, or the error that ended it.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// push attempts a bounded, non-blocking write. The channel buffer bounds
// the attempt; a full buffer is a failed send, not a blocked caller.
func (s *Session) push(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.events <- ev:
		s.lastActivity = time.Now()
		return nil
	default:
		return ErrChannelFull
	}
}

// finalize closes the push channel with the given outcome.
// Safe to call multiple times; only the first outcome sticks.
func (s *Session) finalize(outcome error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.closeErr = outcome
	close(s.events)
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

// Config holds configuration for the session registry.
type Config struct {
	// IdleTimeout overrides DefaultIdleTimeout when positive.
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// Registry tracks one live push channel per client identifier. It is the
// only long-lived shared structure in the server and is safe for concurrent
// connect, send, broadcast, and removal from arbitrary request contexts.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	idleTimeout time.Duration
	logger      *slog.Logger
	done        chan struct{}
	closeOnce   sync.Once
}

// NewRegistry creates a session registry and starts its idle-timeout
// janitor. Call Close during shutdown to stop it.
func NewRegistry(cfg Config) *Registry {
	timeout := cfg.IdleTimeout
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		sessions:    make(map[string]*Session),
		idleTimeout: timeout,
		logger:      logger.With("component", "sessions"),
		done:        make(chan struct{}),
	}
	go r.janitor()
	return r
}

// normalizeClientID maps empty or blank ids to the default sentinel.
func normalizeClientID(clientID string) string {
	trimmed := strings.TrimSpace(clientID)
	if trimmed == "" {
		return DefaultClientID
	}
	return trimmed
}

// Connect registers a new session for the client and returns it. A live
// session under the same id is superseded: its entry is removed first,
// then its channel is finalized with ErrReplaced.
func (r *Registry) Connect(clientID string) *Session {
	key := normalizeClientID(clientID)
	sess := newSession(key)

	r.mu.Lock()
	old := r.sessions[key]
	r.sessions[key] = sess
	total := len(r.sessions)
	r.mu.Unlock()

	if old != nil {
		old.finalize(ErrReplaced)
	}

	r.logger.Debug("session connected",
		"client_id", key,
		"replaced", old != nil,
		"total_sessions", total,
	)
	return sess
}

// SendToClient writes a named event to the client's push channel. Unknown
// ids are a no-op. A failed write is terminal for that session: the
// registry entry is removed first, then the channel is finalized with an
// error outcome.
func (r *Registry) SendToClient(clientID, eventName string, payload any) {
	key := normalizeClientID(clientID)

	r.mu.RLock()
	sess := r.sessions[key]
	r.mu.RUnlock()
	if sess == nil {
		return
	}

	if err := sess.push(Event{Name: eventName, Data: payload}); err != nil {
		r.remove(sess)
		sess.finalize(errors.Join(ErrSendFailed, err))
		r.logger.Warn("push failed, session removed",
			"client_id", key,
			"event", eventName,
			"error", err,
		)
	}
}

// Broadcast sends a named event to every registered client. The id set is
// snapshotted first, so sessions that error out mid-broadcast only affect
// themselves.
func (r *Registry) Broadcast(eventName string, payload any) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.SendToClient(id, eventName, payload)
	}
}

// Disconnect completes the client's session, if any.
func (r *Registry) Disconnect(clientID string) {
	key := normalizeClientID(clientID)

	r.mu.Lock()
	sess := r.sessions[key]
	if sess != nil {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if sess != nil {
		sess.finalize(nil)
		r.logger.Debug("session disconnected", "client_id", key)
	}
}

// Complete completes exactly the given session. Unlike Disconnect it will
// not tear down a newer session that replaced this one under the same id.
func (r *Registry) Complete(sess *Session) {
	if sess == nil {
		return
	}
	r.remove(sess)
	sess.finalize(nil)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops the janitor and finalizes every remaining session.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})

	r.mu.Lock()
	remaining := make([]*Session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		remaining = append(remaining, sess)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, sess := range remaining {
		sess.finalize(nil)
	}
	r.logger.Debug("session registry closed", "sessions_closed", len(remaining))
}

// remove deletes the entry only if the map still holds this exact session,
// so a removal can never evict a replacement registered in the meantime.
func (r *Registry) remove(sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[sess.ClientID]; ok && current == sess {
		delete(r.sessions, sess.ClientID)
		return true
	}
	return false
}

// janitor periodically sweeps out sessions idle past the timeout.
func (r *Registry) janitor() {
	interval := r.idleTimeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.done:
			return
		}
	}
}

func (r *Registry) sweep() {
	now := time.Now()

	r.mu.RLock()
	expired := make([]*Session, 0)
	for _, sess := range r.sessions {
		if sess.idleSince(now) > r.idleTimeout {
			expired = append(expired, sess)
		}
	}
	r.mu.RUnlock()

	for _, sess := range expired {
		if r.remove(sess) {
			sess.finalize(ErrIdleTimeout)
			r.logger.Debug("session timed out", "client_id", sess.ClientID)
		}
	}
}
