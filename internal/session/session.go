// Package session keeps the in-memory state of each signed-in operator:
// the cart and the checkout guard. Nothing here is persisted.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
)

// ErrRetired is returned by Session.Do once the session was swept or
// dropped from its registry. Callers resolve the id again.
var ErrRetired = errors.New("session retired")

// Session is the terminal state of one operator session. Cart access is
// serialized by mu; checkout holds mu for the whole submission so mutations
// issued meanwhile wait for it.
type Session struct {
	ID string

	mu       sync.Mutex
	checkout sync.Mutex
	cart     *domain.Cart
	retired  bool
	key      string
	keyVer   uint64
	keyFor   string
	lastUsed time.Time
	now      func() time.Time
}

func newSession(id string, now func() time.Time) *Session {
	return &Session{
		ID:       id,
		cart:     domain.NewCart(),
		lastUsed: now(),
		now:      now,
	}
}

// Do runs fn with exclusive access to the cart. It returns ErrRetired
// without calling fn when the session is no longer registered.
func (s *Session) Do(fn func(c *domain.Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return ErrRetired
	}
	s.lastUsed = s.now()
	return fn(s.cart)
}

// BeginCheckout claims the checkout slot. It returns ok=false when another
// checkout of this session is in flight. The caller must call release.
func (s *Session) BeginCheckout() (release func(), ok bool) {
	if !s.checkout.TryLock() {
		return nil, false
	}
	return s.checkout.Unlock, true
}

// IdempotencyKey returns the key for submitting the cart in its current
// version with the given payment terms. The same key is returned until the
// cart or terms change or RotateKey is called. It must be called from
// inside Do.
func (s *Session) IdempotencyKey(terms string) string {
	if s.key == "" || s.keyVer != s.cart.Version() || s.keyFor != terms {
		s.key = uuid.NewString()
		s.keyVer = s.cart.Version()
		s.keyFor = terms
	}
	return s.key
}

// RotateKey discards the current idempotency key. It must be called from
// inside Do.
func (s *Session) RotateKey() {
	s.key = ""
}

func (s *Session) alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.retired
}

func (s *Session) retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired = true
}

// retireIfIdle retires the session when it was last used before cutoff.
func (s *Session) retireIfIdle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastUsed.Before(cutoff) {
		return false
	}
	s.retired = true
	return true
}

// Registry maps session ids to sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
		logger:   logger,
	}
}

// Get returns the session for id, creating it with an empty cart on first
// use.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s = newSession(id, r.now)
	r.sessions[id] = s
	return s
}

// Do runs fn on the cart of session id, creating the session if needed.
// A session retired between lookup and use is resolved again.
func (r *Registry) Do(id string, fn func(c *domain.Cart) error) error {
	for {
		err := r.Get(id).Do(fn)
		if !errors.Is(err, ErrRetired) {
			return err
		}
	}
}

// BeginCheckout resolves session id and claims its checkout slot. While the
// slot is held the session cannot be swept. ok is false when another
// checkout of the session is in flight.
func (r *Registry) BeginCheckout(id string) (sess *Session, release func(), ok bool) {
	for {
		sess = r.Get(id)
		release, ok = sess.BeginCheckout()
		if !ok {
			return nil, nil, false
		}
		if sess.alive() {
			return sess, release, true
		}
		release()
	}
}

// Drop forgets the session and its cart. It waits for a checkout holding
// the cart to finish, without blocking other sessions meanwhile.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.retire()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions untouched for longer than idle and returns how many
// were removed. Sessions with a checkout in flight are kept.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if !s.checkout.TryLock() {
			continue
		}
		stale := s.retireIfIdle(cutoff)
		s.checkout.Unlock()
		if stale {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is canceled.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				r.logger.Info("dropped idle carts", slog.Int("count", n))
			}
		}
	}
}
