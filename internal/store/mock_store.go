// ABOUTME: Mock TranscriptStore for testing
// ABOUTME: Keeps turns in memory and can be told to fail writes

package store

import (
	"context"
	"sort"
	"sync"
)

// MockStore is an in-memory TranscriptStore for tests.
type MockStore struct {
	mu      sync.RWMutex
	turns   []*Turn
	SaveErr error // returned by SaveTurn when set
}

var _ TranscriptStore = (*MockStore)(nil)

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// SaveTurn stores a copy of turn.
func (m *MockStore) SaveTurn(ctx context.Context, turn *Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	t := *turn
	m.turns = append(m.turns, &t)
	return nil
}

// GetTurn returns a turn by ID.
func (m *MockStore) GetTurn(ctx context.Context, id string) (*Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.turns {
		if t.ID == id {
			c := *t
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// ListTurns returns turns for a key, newest first.
func (m *MockStore) ListTurns(ctx context.Context, conversationKey string, limit int) ([]*Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Turn
	for _, t := range m.turns {
		if t.ConversationKey == conversationKey {
			c := *t
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Turns returns every saved turn in save order.
func (m *MockStore) Turns() []*Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}
