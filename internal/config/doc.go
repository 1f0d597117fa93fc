// Package config handles configuration loading for slack-dify-bridge.
//
// # Overview
//
// Configuration is layered, lowest precedence first:
//
//  1. Built-in defaults (DefaultConfig)
//  2. A TOML or YAML config file
//  3. A .env file in the working directory (never overrides set variables)
//  4. Environment variables
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SLACK_DIFY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/slack-dify/bridge.toml
//  3. ~/.config/slack-dify/bridge.toml
//
// A missing file is not an error; the bridge can run from environment
// variables alone. Files ending in .yaml or .yml are parsed as YAML,
// everything else as TOML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	[dify]
//	api_key = "${DIFY_API_KEY}"
//
// # Environment Variables
//
//	SLACK_BOT_TOKEN    slack.bot_token
//	SLACK_APP_TOKEN    slack.app_token
//	DIFY_API_KEY       dify.api_key
//	DIFY_API_BASE_URL  dify.base_url
//	DEBUG              "true" enables debug logging and HTTP tracing
//	LOG_LEVEL          logging.level
//	DATABASE_PATH      database.path
//	HTTP_ADDR          server.http_addr
//
// # Configuration Sections
//
//	[slack]
//	bot_token = "xoxb-..."
//	app_token = "xapp-..."
//
//	[dify]
//	api_key = "app-..."
//	base_url = "https://api.dify.ai/v1"
//	http_timeout = "120s"
//	upload_timeout = "60s"
//	upload_user = "slack-bot"
//
//	[bridge]
//	reply_timeout = "60s"
//	download_timeout = "30s"
//	dedupe_ttl = "10m"
//	convert_markdown = true
//	shutdown_grace = "10s"
//
//	[messages]
//	greeting = "Hi! How can I help?"
//
//	[database]
//	path = "~/.local/share/slack-dify/turns.db"  # optional transcript ledger
//
//	[server]
//	http_addr = "127.0.0.1:8080"  # optional health endpoints
//
//	[logging]
//	level = "info"   # debug, info, warn, error
//	format = "text"  # text, json
//
// # Validation
//
// Load only parses. Validate reports every problem in one joined error;
// missing credentials are listed together and wrap ErrMissingCredentials.
package config
