// ABOUTME: Tests for the console log handler
// ABOUTME: Color is disabled so output can be compared as plain text

package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/2389/slack-dify-bridge/internal/config"
)

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestColorHandler_FormatsAttrs(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.With("component", "router").Info("turn answered", "turn_id", "abc", "files", 2)

	line := buf.String()
	assert.Contains(t, line, "INF turn answered")
	assert.Contains(t, line, "component=router")
	assert.Contains(t, line, "turn_id=abc")
	assert.Contains(t, line, "files=2")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestColorHandler_Level(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn"}, &buf)

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warn("shown")
	logger.Error("also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN shown")
	assert.Contains(t, out, "ERR also shown")
}

func TestColorHandler_Groups(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug"}, &buf)

	logger.WithGroup("slack").Debug("event", "key", "app_mention:C1:1.1")

	assert.Contains(t, buf.String(), "DBG event")
	assert.Contains(t, buf.String(), "slack.key=app_mention:C1:1.1")
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("hello", "user", "U9")

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"user":"U9"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}
