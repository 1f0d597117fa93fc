// ABOUTME: Turn type and TranscriptStore interface for the audit ledger
// ABOUTME: A Turn is one inbound Slack message and the outcome of answering it

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested turn does not exist
var ErrNotFound = errors.New("not found")

// TurnStatus is the outcome of a turn.
type TurnStatus string

const (
	TurnStatusOK      TurnStatus = "ok"
	TurnStatusTimeout TurnStatus = "timeout"
	TurnStatusError   TurnStatus = "error"
)

// Turn kinds mirror the two inbound event variants.
const (
	KindMention       = "mention"
	KindDirectMessage = "direct_message"
)

// Turn records one answered (or failed) message.
type Turn struct {
	ID              string
	ConversationKey string
	ConversationID  string // empty unless the backend replied
	Kind            string
	ChannelID       string
	UserID          string
	Query           string
	Answer          string
	Status          TurnStatus
	Error           string
	FileCount       int
	Duration        time.Duration
	CreatedAt       time.Time
}

// TranscriptStore persists turns.
type TranscriptStore interface {
	SaveTurn(ctx context.Context, turn *Turn) error
	GetTurn(ctx context.Context, id string) (*Turn, error)
	// ListTurns returns the newest turns for a conversation key, newest first.
	ListTurns(ctx context.Context, conversationKey string, limit int) ([]*Turn, error)
	Close() error
}
