// ABOUTME: In-memory mapping from (channel, user) to backend conversation ID
// ABOUTME: Process-lifetime only; last completed write for a key wins

package conversation

import "sync"

// Key identifies one logical dialogue with the backend.
type Key struct {
	ChannelID string
	UserID    string
}

// String renders the key as "<channel>-<user>".
func (k Key) String() string {
	return k.ChannelID + "-" + k.UserID
}

// Store is what the router needs for conversation continuity.
type Store interface {
	// Get returns the conversation ID for key, or false if none is known.
	Get(key Key) (string, bool)
	// Set records conversationID for key, replacing any previous value.
	Set(key Key, conversationID string)
}

// MemoryStore is a Store backed by a map guarded by a RWMutex.
type MemoryStore struct {
	mu  sync.RWMutex
	ids map[Key]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ids: make(map[Key]string),
	}
}

// Get returns the conversation ID stored for key.
func (s *MemoryStore) Get(key Key) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ids[key]
	return id, ok
}

// Set overwrites the conversation ID for key. Empty IDs are ignored so a
// malformed backend reply cannot erase a working conversation.
func (s *MemoryStore) Set(key Key, conversationID string) {
	if conversationID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[key] = conversationID
}

// Len reports how many dialogues have a known conversation ID.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
