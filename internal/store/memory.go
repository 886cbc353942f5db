// internal/store/memory.go
//
// In-memory implementation of the match Store interface.
// Live match state is ephemeral by design: matches are reset rather
// than serialized, and only results/metadata are persisted to the DB.
//
// Characteristics:
//   - Stores *game.Game objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Errors are returned for missing match IDs on Get().

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/ancientgames/royal-ur/internal/game"
)

// ErrNotFound is returned by Get for unknown match IDs.
var ErrNotFound = errors.New("match not found")

// Store defines the registry for live match sessions.
// Implementations may be backed by memory (this package), Redis, etc.
type Store interface {
	// Save registers or updates a match session.
	Save(ctx context.Context, g *game.Game) error

	// Get retrieves a match by ID.
	// Returns ErrNotFound if the match is unknown.
	Get(ctx context.Context, id string) (*game.Game, error)
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu      sync.RWMutex          // guards matches map
	matches map[string]*game.Game // keyed by Game.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{matches: make(map[string]*game.Game)}
}

// Save adds or updates the match in the map.
func (m *memory) Save(ctx context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[g.ID] = g
	return nil
}

// Get looks up a match by ID.
func (m *memory) Get(ctx context.Context, id string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.matches[id]; ok {
		return g, nil
	}
	return nil, ErrNotFound
}
