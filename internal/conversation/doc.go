// Package conversation tracks backend conversation identifiers per dialogue.
//
// # Overview
//
// Every Slack dialogue with the bridge is identified by a Key, the pair of
// channel ID and user ID. The first successful backend reply for a key
// yields an opaque conversation ID; later turns send it back so the backend
// keeps context across messages.
//
//	store := conversation.NewMemoryStore()
//	key := conversation.Key{ChannelID: "C1", UserID: "U9"}
//	id, ok := store.Get(key)       // "", false on the first turn
//	store.Set(key, resp.ConversationID)
//
// # Lifetime
//
// Records live for the process lifetime only. There is no eviction, no TTL
// and no persistence; a restart starts every dialogue over.
//
// # Concurrency
//
// MemoryStore is safe for concurrent use. Two turns for the same key may be
// in flight at once; whichever finishes last wins.
package conversation
