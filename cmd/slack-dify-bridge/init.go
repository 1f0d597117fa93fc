// ABOUTME: Interactive config writer for the init subcommand
// ABOUTME: Prompts for credentials and options and writes a TOML config file

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/2389/slack-dify-bridge/internal/config"
)

// fileConfig is the subset of config.Config that init writes.
type fileConfig struct {
	Slack struct {
		BotToken string `toml:"bot_token"`
		AppToken string `toml:"app_token"`
	} `toml:"slack"`
	Dify struct {
		APIKey  string `toml:"api_key"`
		BaseURL string `toml:"base_url"`
	} `toml:"dify"`
	Bridge struct {
		ReplyTimeout    string `toml:"reply_timeout"`
		ConvertMarkdown bool   `toml:"convert_markdown"`
	} `toml:"bridge"`
	Database struct {
		Path string `toml:"path,omitempty"`
	} `toml:"database"`
	Server struct {
		HTTPAddr string `toml:"http_addr,omitempty"`
	} `toml:"server"`
	Logging struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"logging"`
}

func runInit() error {
	return initConfig(os.Stdin, os.Stdout)
}

func initConfig(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	defaults := config.DefaultConfig()

	fmt.Fprintln(out, "slack-dify-bridge configuration setup")
	fmt.Fprintln(out, "=====================================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, out, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	var fc fileConfig

	fmt.Fprintln(out, "\n--- Slack ---")
	fc.Slack.BotToken = prompt(reader, out, "Bot token (xoxb-..., empty to use SLACK_BOT_TOKEN)", "")
	fc.Slack.AppToken = prompt(reader, out, "App token (xapp-..., empty to use SLACK_APP_TOKEN)", "")

	fmt.Fprintln(out, "\n--- Dify ---")
	fc.Dify.APIKey = prompt(reader, out, "API key (empty to use DIFY_API_KEY)", "")
	fc.Dify.BaseURL = prompt(reader, out, "API base URL", defaults.Dify.BaseURL)

	fmt.Fprintln(out, "\n--- Bridge ---")
	fc.Bridge.ReplyTimeout = prompt(reader, out, "Reply timeout", defaults.Bridge.ReplyTimeoutRaw)
	fc.Bridge.ConvertMarkdown = isYes(prompt(reader, out, "Convert Markdown answers to Slack formatting?", "yes"))

	fmt.Fprintln(out, "\n--- Optional ---")
	fc.Database.Path = prompt(reader, out, "Transcript database path (empty to disable)", "")
	fc.Server.HTTPAddr = prompt(reader, out, "Health endpoint address (empty to disable)", "")

	fmt.Fprintln(out, "\n--- Logging ---")
	fc.Logging.Level = prompt(reader, out, "Log level (debug/info/warn/error)", defaults.Logging.Level)
	fc.Logging.Format = prompt(reader, out, "Log format (text/json)", defaults.Logging.Format)

	if err := writeConfig(outputFile, &fc); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nTo start the bridge:")
	fmt.Fprintln(out, "  slack-dify-bridge serve")
	return nil
}

func writeConfig(path string, fc *fileConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# slack-dify-bridge configuration\n")
	buf.WriteString("# Generated by slack-dify-bridge init\n\n")
	if err := toml.NewEncoder(&buf).Encode(fc); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	// Tokens may be in the file, keep it private.
	if err := os.WriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}
