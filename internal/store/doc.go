// Package store keeps an optional audit ledger of bridge turns in SQLite.
//
// # Overview
//
// Each finished turn (one Slack message answered, timed out, or failed) is
// appended as a Turn row. The ledger is for operators: it answers "what did
// the bot say to this user and how long did it take". It is never read back
// to restore conversation state; conversation continuity lives in memory
// only (see package conversation).
//
// # Schema
//
//	turns(id, conversation_key, conversation_id, kind, channel_id, user_id,
//	      query, answer, status, error, file_count, duration_ms, created_at)
//
// The database runs in WAL mode so the history command can read while the
// bridge writes.
//
// # Testing
//
// Use NewMockStore() for unit tests that only need to observe SaveTurn calls.
// Use NewSQLiteStore(filepath.Join(t.TempDir(), "test.db")) for integration tests.
package store
