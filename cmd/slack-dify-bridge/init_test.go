// ABOUTME: Tests for the init subcommand
// ABOUTME: Feeds scripted answers and reloads the written file through config.Load

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/slack-dify-bridge/internal/config"
)

func TestInitConfig_WritesLoadableTOML(t *testing.T) {
	for _, key := range []string{"SLACK_BOT_TOKEN", "SLACK_APP_TOKEN", "DIFY_API_KEY", "DIFY_API_BASE_URL", "DEBUG", "LOG_LEVEL", "DATABASE_PATH", "HTTP_ADDR"} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "nested", "bridge.toml")

	answers := strings.Join([]string{
		path,
		"xoxb-1",
		"xapp-1",
		"app-1",
		"",    // base URL default
		"45s", // reply timeout
		"no",  // markdown
		"",    // database
		"127.0.0.1:8080",
		"debug",
		"",
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, initConfig(strings.NewReader(answers), &out))
	assert.Contains(t, out.String(), "Config written to "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "xoxb-1", cfg.Slack.BotToken)
	assert.Equal(t, "xapp-1", cfg.Slack.AppToken)
	assert.Equal(t, "app-1", cfg.Dify.APIKey)
	assert.Equal(t, config.DefaultDifyBaseURL, cfg.Dify.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Bridge.ReplyTimeout)
	assert.False(t, cfg.Bridge.ConvertMarkdown)
	assert.Empty(t, cfg.Database.Path)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestInitConfig_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.toml")
	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, initConfig(strings.NewReader(path+"\nno\n"), &out))
	assert.Contains(t, out.String(), "Aborted.")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))
}

func TestPrompt_DefaultOnEOF(t *testing.T) {
	var out bytes.Buffer
	got := prompt(newReader(""), &out, "Log level", "info")
	assert.Equal(t, "info", got)
	assert.Contains(t, out.String(), "Log level [info]: ")
}

func TestIsYes(t *testing.T) {
	assert.True(t, isYes("Y"))
	assert.True(t, isYes(" yes "))
	assert.False(t, isYes("no"))
	assert.False(t, isYes(""))
}
