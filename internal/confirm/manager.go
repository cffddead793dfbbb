// Package confirm manages pending confirmation challenges for actions that
// require explicit approval. A challenge bridges two calls: the initial
// request that produced a PendingConfirmation verdict, and the later
// confirmation that releases the action for execution.
package confirm

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrChallengeInvalid is returned for ids that were never issued or
	// were already consumed.
	ErrChallengeInvalid = errors.New("challenge not found")

	// ErrChallengeExpired is returned when the TTL elapsed before
	// confirmation; the entry is evicted as part of the failed confirm.
	ErrChallengeExpired = errors.New("challenge expired")
)

// Challenge is one pending confirmable action.
type Challenge struct {
	ID          string
	CreatedAt   time.Time
	Action      string
	Args        map[string]any
	Description string
	RiskLevel   int
}

// Manager owns the challenge store. All access is serialized on one lock;
// the sweep shares it with interactive calls.
type Manager struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]*Challenge

	// now is swappable for tests.
	now func() time.Time
}

// NewManager returns a manager with the given challenge TTL.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:     ttl,
		pending: make(map[string]*Challenge),
		now:     time.Now,
	}
}

// TTL returns the configured challenge lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// SetTTL updates the lifetime applied to challenges created from now on.
// Used when a policy reload changes confirm_ttl.
func (m *Manager) SetTTL(ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttl = ttl
}

// Create issues a fresh challenge and returns its id. Creation always
// succeeds; ids are globally unique.
func (m *Manager) Create(action string, args map[string]any, description string, riskLevel int) string {
	c := &Challenge{
		ID:          uuid.NewString(),
		CreatedAt:   m.now(),
		Action:      action,
		Args:        args,
		Description: description,
		RiskLevel:   riskLevel,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[c.ID] = c
	return c.ID
}

// Confirm consumes a challenge. On success the challenge is removed in the
// same critical section, so a second confirm with the same id always fails.
// An expired entry is evicted as part of the failed confirmation.
func (m *Manager) Confirm(id string) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.pending[id]
	if !ok {
		return nil, ErrChallengeInvalid
	}
	if m.now().Sub(c.CreatedAt) > m.ttl {
		delete(m.pending, id)
		return nil, ErrChallengeExpired
	}

	delete(m.pending, id)
	return c, nil
}

// Peek returns challenge details without consuming it, or nil when the id
// is unknown or expired.
func (m *Manager) Peek(id string) *Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.pending[id]
	if !ok || m.now().Sub(c.CreatedAt) > m.ttl {
		return nil
	}
	copied := *c
	return &copied
}

// Sweep evicts expired-but-unconfirmed challenges and returns how many were
// removed. Expiry is otherwise lazy, checked on access.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	now := m.now()
	for id, c := range m.pending {
		if now.Sub(c.CreatedAt) > m.ttl {
			delete(m.pending, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored challenges, expired or not.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// SetClock overrides the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}
