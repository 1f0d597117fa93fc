// ABOUTME: Configuration loading and validation for slack-dify-bridge
// ABOUTME: Layers defaults, a TOML or YAML file, a .env file and environment variables

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is wrapped by Validate when any required token or key is unset.
var ErrMissingCredentials = errors.New("missing required credentials")

// DefaultDifyBaseURL is the hosted Dify API.
const DefaultDifyBaseURL = "https://api.dify.ai/v1"

// Config represents the complete bridge configuration
type Config struct {
	Slack    SlackConfig    `toml:"slack" yaml:"slack"`
	Dify     DifyConfig     `toml:"dify" yaml:"dify"`
	Bridge   BridgeConfig   `toml:"bridge" yaml:"bridge"`
	Messages MessagesConfig `toml:"messages" yaml:"messages"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
	Debug    bool           `toml:"debug" yaml:"debug"`
}

// SlackConfig holds Slack app credentials
type SlackConfig struct {
	BotToken string `toml:"bot_token" yaml:"bot_token"`
	AppToken string `toml:"app_token" yaml:"app_token"`
	APIURL   string `toml:"api_url" yaml:"api_url"`
}

// DifyConfig holds backend credentials and HTTP timing
type DifyConfig struct {
	APIKey     string `toml:"api_key" yaml:"api_key"`
	BaseURL    string `toml:"base_url" yaml:"base_url"`
	UploadUser string `toml:"upload_user" yaml:"upload_user"`

	HTTPTimeout   time.Duration `toml:"-" yaml:"-"`
	UploadTimeout time.Duration `toml:"-" yaml:"-"`

	// Raw string values for unmarshaling
	HTTPTimeoutRaw   string `toml:"http_timeout" yaml:"http_timeout"`
	UploadTimeoutRaw string `toml:"upload_timeout" yaml:"upload_timeout"`
}

// BridgeConfig holds event handling behaviour
type BridgeConfig struct {
	ConvertMarkdown bool `toml:"convert_markdown" yaml:"convert_markdown"`

	ReplyTimeout    time.Duration `toml:"-" yaml:"-"`
	DownloadTimeout time.Duration `toml:"-" yaml:"-"`
	DedupeTTL       time.Duration `toml:"-" yaml:"-"`
	ShutdownGrace   time.Duration `toml:"-" yaml:"-"`

	ReplyTimeoutRaw    string `toml:"reply_timeout" yaml:"reply_timeout"`
	DownloadTimeoutRaw string `toml:"download_timeout" yaml:"download_timeout"`
	DedupeTTLRaw       string `toml:"dedupe_ttl" yaml:"dedupe_ttl"`
	ShutdownGraceRaw   string `toml:"shutdown_grace" yaml:"shutdown_grace"`
}

// MessagesConfig overrides the canned replies. Empty fields keep the built-in text.
type MessagesConfig struct {
	Greeting   string `toml:"greeting" yaml:"greeting"`
	Processing string `toml:"processing" yaml:"processing"`
	Timeout    string `toml:"timeout" yaml:"timeout"`
	Error      string `toml:"error" yaml:"error"`
}

// DatabaseConfig holds the transcript ledger location. Empty disables it.
type DatabaseConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// ServerConfig holds the health endpoint address. Empty disables it.
type ServerConfig struct {
	HTTPAddr string `toml:"http_addr" yaml:"http_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Dify: DifyConfig{
			BaseURL:          DefaultDifyBaseURL,
			UploadUser:       "slack-bot",
			HTTPTimeoutRaw:   "120s",
			UploadTimeoutRaw: "60s",
		},
		Bridge: BridgeConfig{
			ConvertMarkdown:    true,
			ReplyTimeoutRaw:    "60s",
			DownloadTimeoutRaw: "30s",
			DedupeTTLRaw:       "10m",
			ShutdownGraceRaw:   "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the config file location: $SLACK_DIFY_CONFIG, then
// $XDG_CONFIG_HOME/slack-dify/bridge.toml, then ~/.config/slack-dify/bridge.toml.
func DefaultPath() string {
	if p := os.Getenv("SLACK_DIFY_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "slack-dify", "bridge.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "slack-dify", "bridge.toml")
	}
	return filepath.Join(home, ".config", "slack-dify", "bridge.toml")
}

// Load builds a Config from defaults, the file at path (missing is fine),
// ./.env and the process environment, in that order of precedence.
// Credentials are not checked here; call Validate before connecting.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	return cfg, nil
}

// loadDotEnv sets variables from a .env file without overriding ones already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	case ".toml", "":
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (want .toml, .yaml or .yml)", filepath.Ext(path))
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv overlays the well-known environment variables.
func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.Slack.BotToken, "SLACK_BOT_TOKEN")
	set(&cfg.Slack.AppToken, "SLACK_APP_TOKEN")
	set(&cfg.Dify.APIKey, "DIFY_API_KEY")
	set(&cfg.Dify.BaseURL, "DIFY_API_BASE_URL")
	set(&cfg.Logging.Level, "LOG_LEVEL")
	set(&cfg.Database.Path, "DATABASE_PATH")
	set(&cfg.Server.HTTPAddr, "HTTP_ADDR")

	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}
	if cfg.Debug {
		cfg.Logging.Level = "debug"
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"dify.http_timeout", cfg.Dify.HTTPTimeoutRaw, &cfg.Dify.HTTPTimeout},
		{"dify.upload_timeout", cfg.Dify.UploadTimeoutRaw, &cfg.Dify.UploadTimeout},
		{"bridge.reply_timeout", cfg.Bridge.ReplyTimeoutRaw, &cfg.Bridge.ReplyTimeout},
		{"bridge.download_timeout", cfg.Bridge.DownloadTimeoutRaw, &cfg.Bridge.DownloadTimeout},
		{"bridge.dedupe_ttl", cfg.Bridge.DedupeTTLRaw, &cfg.Bridge.DedupeTTL},
		{"bridge.shutdown_grace", cfg.Bridge.ShutdownGraceRaw, &cfg.Bridge.ShutdownGrace},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
// Missing credentials are listed together in one error wrapping ErrMissingCredentials.
func (c *Config) Validate() error {
	var errs []error

	var missing []string
	if c.Slack.BotToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if c.Slack.AppToken == "" {
		missing = append(missing, "SLACK_APP_TOKEN")
	}
	if c.Dify.APIKey == "" {
		missing = append(missing, "DIFY_API_KEY")
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", ")))
	}

	if err := validateURL("dify.base_url", c.Dify.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.Slack.APIURL != "" {
		if err := validateURL("slack.api_url", c.Slack.APIURL); err != nil {
			errs = append(errs, err)
		}
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"dify.http_timeout", c.Dify.HTTPTimeout},
		{"dify.upload_timeout", c.Dify.UploadTimeout},
		{"bridge.reply_timeout", c.Bridge.ReplyTimeout},
		{"bridge.download_timeout", c.Bridge.DownloadTimeout},
		{"bridge.dedupe_ttl", c.Bridge.DedupeTTL},
		{"bridge.shutdown_grace", c.Bridge.ShutdownGrace},
	}
	for _, f := range durations {
		if f.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", f.name))
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func validateURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", field)
	}
	return nil
}
