// ABOUTME: SQLite implementation of TranscriptStore using modernc.org/sqlite
// ABOUTME: Creates the turns table on open and runs in WAL mode

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout has fixed-width fractional seconds so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements TranscriptStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ TranscriptStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the ledger at path.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS turns (
			id               TEXT PRIMARY KEY,
			conversation_key TEXT NOT NULL,
			conversation_id  TEXT NOT NULL DEFAULT '',
			kind             TEXT NOT NULL,
			channel_id       TEXT NOT NULL,
			user_id          TEXT NOT NULL,
			query            TEXT NOT NULL,
			answer           TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL,
			error            TEXT NOT NULL DEFAULT '',
			file_count       INTEGER NOT NULL DEFAULT 0,
			duration_ms      INTEGER NOT NULL DEFAULT 0,
			created_at       TEXT NOT NULL,

			CHECK (status IN ('ok', 'timeout', 'error'))
		);

		CREATE INDEX IF NOT EXISTS idx_turns_key_created
			ON turns(conversation_key, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveTurn appends a turn.
func (s *SQLiteStore) SaveTurn(ctx context.Context, turn *Turn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, conversation_key, conversation_id, kind, channel_id, user_id,
			query, answer, status, error, file_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.ConversationKey, turn.ConversationID, turn.Kind, turn.ChannelID, turn.UserID,
		turn.Query, turn.Answer, string(turn.Status), turn.Error, turn.FileCount,
		turn.Duration.Milliseconds(), turn.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}
	return nil
}

// GetTurn returns one turn by ID.
func (s *SQLiteStore) GetTurn(ctx context.Context, id string) (*Turn, error) {
	row := s.db.QueryRowContext(ctx, selectTurn+` WHERE id = ?`, id)
	turn, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying turn: %w", err)
	}
	return turn, nil
}

// ListTurns returns up to limit turns for conversationKey, newest first.
func (s *SQLiteStore) ListTurns(ctx context.Context, conversationKey string, limit int) ([]*Turn, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		selectTurn+` WHERE conversation_key = ? ORDER BY created_at DESC LIMIT ?`,
		conversationKey, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectTurn = `
	SELECT id, conversation_key, conversation_id, kind, channel_id, user_id,
		query, answer, status, error, file_count, duration_ms, created_at
	FROM turns`

type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(row scanner) (*Turn, error) {
	var (
		turn       Turn
		status     string
		durationMS int64
		createdAt  string
	)
	err := row.Scan(&turn.ID, &turn.ConversationKey, &turn.ConversationID, &turn.Kind,
		&turn.ChannelID, &turn.UserID, &turn.Query, &turn.Answer, &status, &turn.Error,
		&turn.FileCount, &durationMS, &createdAt)
	if err != nil {
		return nil, err
	}
	turn.Status = TurnStatus(status)
	turn.Duration = time.Duration(durationMS) * time.Millisecond
	turn.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	return &turn, nil
}
