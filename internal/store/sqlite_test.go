// ABOUTME: Tests for the SQLite transcript ledger
// ABOUTME: Round-trips turns through a temp database and checks ordering and limits

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTurn(id string, at time.Time) *Turn {
	return &Turn{
		ID:              id,
		ConversationKey: "C1-U9",
		ConversationID:  "conv-42",
		Kind:            KindMention,
		ChannelID:       "C1",
		UserID:          "U9",
		Query:           "what is 2+2?",
		Answer:          "4",
		Status:          TurnStatusOK,
		FileCount:       1,
		Duration:        1500 * time.Millisecond,
		CreatedAt:       at,
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 9, 30, 0, 123456789, time.UTC)

	require.NoError(t, s.SaveTurn(ctx, sampleTurn("turn-1", at)))

	got, err := s.GetTurn(ctx, "turn-1")
	require.NoError(t, err)
	assert.Equal(t, "C1-U9", got.ConversationKey)
	assert.Equal(t, "conv-42", got.ConversationID)
	assert.Equal(t, KindMention, got.Kind)
	assert.Equal(t, "what is 2+2?", got.Query)
	assert.Equal(t, "4", got.Answer)
	assert.Equal(t, TurnStatusOK, got.Status)
	assert.Equal(t, 1, got.FileCount)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, at.Equal(got.CreatedAt))
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetTurn(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTurn(ctx, sampleTurn("turn-1", time.Now())))
	assert.Error(t, s.SaveTurn(ctx, sampleTurn("turn-1", time.Now())))
}

func TestSQLiteStore_RejectsUnknownStatus(t *testing.T) {
	s := createTestStore(t)

	turn := sampleTurn("turn-1", time.Now())
	turn.Status = "pending"
	assert.Error(t, s.SaveTurn(context.Background(), turn))
}

func TestSQLiteStore_ListTurnsNewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		// Sub-second offsets check that created_at sorts correctly as text.
		turn := sampleTurn(fmt.Sprintf("turn-%d", i), base.Add(time.Duration(i)*500*time.Millisecond))
		require.NoError(t, s.SaveTurn(ctx, turn))
	}
	other := sampleTurn("other", base.Add(time.Hour))
	other.ConversationKey = "C2-U1"
	require.NoError(t, s.SaveTurn(ctx, other))

	turns, err := s.ListTurns(ctx, "C1-U9", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "turn-4", turns[0].ID)
	assert.Equal(t, "turn-3", turns[1].ID)
	assert.Equal(t, "turn-2", turns[2].ID)
}

func TestSQLiteStore_FailedTurn(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	turn := sampleTurn("turn-t", time.Now())
	turn.Status = TurnStatusTimeout
	turn.ConversationID = ""
	turn.Answer = ""
	turn.Error = "reply timed out"
	require.NoError(t, s.SaveTurn(ctx, turn))

	got, err := s.GetTurn(ctx, "turn-t")
	require.NoError(t, err)
	assert.Equal(t, TurnStatusTimeout, got.Status)
	assert.Empty(t, got.ConversationID)
	assert.Equal(t, "reply timed out", got.Error)
}

func TestMockStore(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, m.SaveTurn(ctx, sampleTurn("a", base)))
	require.NoError(t, m.SaveTurn(ctx, sampleTurn("b", base.Add(time.Second))))

	turns, err := m.ListTurns(ctx, "C1-U9", 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "b", turns[0].ID)

	_, err = m.GetTurn(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	m.SaveErr = assert.AnError
	assert.ErrorIs(t, m.SaveTurn(ctx, sampleTurn("c", base)), assert.AnError)
	assert.Len(t, m.Turns(), 2)
}
