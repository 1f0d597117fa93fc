// ABOUTME: Entry point for slack-dify-bridge
// ABOUTME: Relays Slack mentions and direct messages to a Dify chat application

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/2389/slack-dify-bridge/internal/attachment"
	"github.com/2389/slack-dify-bridge/internal/bridge"
	"github.com/2389/slack-dify-bridge/internal/config"
	"github.com/2389/slack-dify-bridge/internal/conversation"
	"github.com/2389/slack-dify-bridge/internal/dify"
	"github.com/2389/slack-dify-bridge/internal/server"
	"github.com/2389/slack-dify-bridge/internal/slackbot"
	"github.com/2389/slack-dify-bridge/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _            _           _ _  __
 ___| | __ _  ___| | __    __| (_)/ _|_   _
/ __| |/ _' |/ __| |/ /___/ _' | | |_| | | |
\__ \ | (_| | (__|   <___| (_| | |  _| |_| |
|___/_|\__,_|\___|_|\_\   \__,_|_|_|  \__, |
                                      |___/
`

func usage() {
	fmt.Println("Usage: slack-dify-bridge [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                    Start the bridge (default)")
	fmt.Println("  init                     Create a new config file interactively")
	fmt.Println("  health                   Check that the Dify API is reachable")
	fmt.Println("  history CHANNEL USER     Show recent recorded turns")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "history":
		err = runHistory(ctx, os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingCredentials) {
			return fmt.Errorf("%w\n\nSet them in the environment, a .env file, or %s", err, configPath)
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Dify:      %s\n", cfg.Dify.BaseURL)
	if cfg.Database.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("Ledger:    %s\n", cfg.Database.Path)
	}
	if cfg.Server.HTTPAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Debug {
		color.New(color.FgYellow).Println("    ▶ Debug mode")
	}
	fmt.Println()

	logger.Info("starting slack-dify-bridge",
		"config", configPath,
		"dify_base_url", cfg.Dify.BaseURL,
		"reply_timeout", cfg.Bridge.ReplyTimeout,
	)

	backend := newDifyClient(cfg, logger)

	bot, err := slackbot.New(slackbot.Config{
		BotToken:      cfg.Slack.BotToken,
		AppToken:      cfg.Slack.AppToken,
		APIURL:        cfg.Slack.APIURL,
		Debug:         cfg.Debug,
		DedupeTTL:     cfg.Bridge.DedupeTTL,
		ShutdownGrace: cfg.Bridge.ShutdownGrace,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating slack client: %w", err)
	}

	var transcripts store.TranscriptStore
	if cfg.Database.Path != "" {
		s, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening transcript ledger: %w", err)
		}
		defer s.Close()
		transcripts = s
	}

	router := bridge.New(
		bot,
		backend,
		attachment.NewExtractor(bot, cfg.Bridge.DownloadTimeout, logger),
		conversation.NewMemoryStore(),
		bridge.Options{
			ReplyTimeout:    cfg.Bridge.ReplyTimeout,
			ConvertMarkdown: cfg.Bridge.ConvertMarkdown,
			Messages: bridge.Messages{
				Greeting:   cfg.Messages.Greeting,
				Processing: cfg.Messages.Processing,
				Timeout:    cfg.Messages.Timeout,
				Error:      cfg.Messages.Error,
			},
			Transcripts: transcripts,
		},
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx, router)
	})
	g.Go(func() error {
		probeBackend(gctx, backend, logger)
		return nil
	})
	if cfg.Server.HTTPAddr != "" {
		srv := server.New(cfg.Server.HTTPAddr, backend, bot, logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	err = g.Wait()
	logger.Info("slack-dify-bridge stopped")
	return err
}

func newDifyClient(cfg *config.Config, logger *slog.Logger) *dify.Client {
	return dify.NewClient(dify.Options{
		BaseURL:       cfg.Dify.BaseURL,
		APIKey:        cfg.Dify.APIKey,
		UploadUser:    cfg.Dify.UploadUser,
		UploadTimeout: cfg.Dify.UploadTimeout,
		HTTPClient:    &http.Client{Timeout: cfg.Dify.HTTPTimeout},
		Debug:         cfg.Debug,
	}, logger)
}

// probeBackend logs once whether the backend is reachable. It never fails startup.
func probeBackend(ctx context.Context, backend *dify.Client, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if backend.TestConnection(ctx) {
		logger.Info("dify API reachable")
		return
	}
	logger.Warn("dify API not reachable, replies will fail until it is")
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if !newDifyClient(cfg, logger).TestConnection(ctx) {
		return fmt.Errorf("dify API at %s is not reachable", cfg.Dify.BaseURL)
	}

	fmt.Println("healthy")
	return nil
}
