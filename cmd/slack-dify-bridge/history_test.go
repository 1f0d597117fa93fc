// ABOUTME: Tests for history output formatting
// ABOUTME: Checks the table layout and truncation of long texts

package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/2389/slack-dify-bridge/internal/conversation"
	"github.com/2389/slack-dify-bridge/internal/store"
)

func newReader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestPrintTurns(t *testing.T) {
	withoutColor(t)
	key := conversation.Key{ChannelID: "C1", UserID: "U9"}
	turns := []*store.Turn{
		{
			Query:     "what is this",
			Answer:    "a cat",
			Status:    store.TurnStatusOK,
			FileCount: 1,
			Duration:  1500 * time.Millisecond,
			CreatedAt: time.Now(),
		},
		{
			Query:     "slow one",
			Status:    store.TurnStatusTimeout,
			Error:     "reply timed out",
			Duration:  60 * time.Second,
			CreatedAt: time.Now(),
		},
	}

	var out bytes.Buffer
	printTurns(&out, key, turns)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "ok")
	assert.Contains(t, lines[1], "a cat")
	assert.Contains(t, lines[1], "1.5s")
	assert.Contains(t, lines[2], "timeout")
	assert.Contains(t, lines[2], "reply timed out")
}

func TestPrintTurns_Empty(t *testing.T) {
	var out bytes.Buffer
	printTurns(&out, conversation.Key{ChannelID: "C1", UserID: "U9"}, nil)
	assert.Equal(t, "No turns recorded for C1-U9\n", out.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "one two", truncate("one\n  two", 10))
	assert.Equal(t, "こんにち…", truncate("こんにちは世界", 5))
}
