// ABOUTME: Socket Mode event loop and Slack Web API calls used by the router
// ABOUTME: Acks envelopes, dedupes redeliveries, and runs each turn on its own goroutine

package slackbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/2389/slack-dify-bridge/internal/attachment"
	"github.com/2389/slack-dify-bridge/internal/bridge"
	"github.com/2389/slack-dify-bridge/internal/dedupe"
)

// DefaultShutdownGrace bounds how long Run waits for in-flight turns.
const DefaultShutdownGrace = 10 * time.Second

// Handler receives normalized events.
type Handler interface {
	Handle(ctx context.Context, evt bridge.Event)
}

// Config holds what the Bot needs to connect.
type Config struct {
	BotToken      string
	AppToken      string
	APIURL        string // optional Web API base, e.g. for tests
	Debug         bool
	DedupeTTL     time.Duration
	ShutdownGrace time.Duration
}

// Bot is a Socket Mode connection plus a Web API client.
type Bot struct {
	api    *slack.Client
	socket *socketmode.Client
	seen   *dedupe.Cache
	grace  time.Duration
	logger *slog.Logger

	connected atomic.Bool
	inflight  sync.WaitGroup
}

var (
	_ bridge.Platform   = (*Bot)(nil)
	_ attachment.Source = (*Bot)(nil)
)

// New creates a Bot. It does not connect until Run.
func New(cfg Config, logger *slog.Logger) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("slack bot token is required")
	}
	if cfg.AppToken == "" {
		return nil, errors.New("slack app token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "slackbot")

	opts := []slack.Option{slack.OptionAppLevelToken(cfg.AppToken)}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	if cfg.Debug {
		opts = append(opts,
			slack.OptionDebug(true),
			slack.OptionLog(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)),
		)
	}
	api := slack.New(cfg.BotToken, opts...)

	socketOpts := []socketmode.Option{}
	if cfg.Debug {
		socketOpts = append(socketOpts,
			socketmode.OptionDebug(true),
			socketmode.OptionLog(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)),
		)
	}

	grace := cfg.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	return &Bot{
		api:    api,
		socket: socketmode.New(api, socketOpts...),
		seen:   dedupe.New(cfg.DedupeTTL, 0),
		grace:  grace,
		logger: logger,
	}, nil
}

// Connected reports whether the Socket Mode connection is up.
func (b *Bot) Connected() bool {
	return b.connected.Load()
}

// Run connects to Slack and feeds events to h until ctx is cancelled.
// It then waits up to the shutdown grace for in-flight turns.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	defer b.seen.Close()

	runErr := make(chan error, 1)
	go func() {
		runErr <- b.socket.RunContext(ctx)
	}()

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err = <-runErr:
			break loop
		case evt := <-b.socket.Events:
			b.dispatch(ctx, evt, h)
		}
	}
	b.connected.Store(false)

	b.drain()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("socket mode: %w", err)
	}
	return nil
}

// drain waits for in-flight handlers, giving up after the grace period.
func (b *Bot) drain() {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(b.grace):
		b.logger.Warn("shutdown grace elapsed with turns still running", "grace", b.grace)
	}
}

func (b *Bot) dispatch(ctx context.Context, evt socketmode.Event, h Handler) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Info("connecting to slack")
	case socketmode.EventTypeConnected:
		b.connected.Store(true)
		b.logger.Info("connected to slack")
	case socketmode.EventTypeConnectionError:
		b.connected.Store(false)
		b.logger.Warn("slack connection error", "data", evt.Data)
	case socketmode.EventTypeInvalidAuth:
		b.connected.Store(false)
		b.logger.Error("slack rejected the app token")
	case socketmode.EventTypeEventsAPI:
		if evt.Request == nil {
			return
		}
		b.socket.Ack(*evt.Request)
		b.handlePayload(ctx, evt.Request.Payload, h)
	default:
		if evt.Request != nil {
			b.socket.Ack(*evt.Request)
		}
	}
}

func (b *Bot) handlePayload(ctx context.Context, payload []byte, h Handler) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		b.logger.Warn("dropping undecodable event", "error", err)
		return
	}

	ev, key, ok := normalize(env.Event)
	if !ok {
		return
	}
	if b.seen.CheckAndMark(key) {
		b.logger.Debug("dropping redelivered event", "key", key)
		return
	}

	b.logger.Debug("event received", "key", key, "event_id", env.EventID)

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event handler panicked", "key", key, "panic", r)
			}
		}()
		h.Handle(context.WithoutCancel(ctx), ev)
	}()
}

// BotUserID returns the bot's own user ID.
func (b *Bot) BotUserID(ctx context.Context) (string, error) {
	resp, err := b.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("auth.test: %w", err)
	}
	return resp.UserID, nil
}

// IsDirectChannel reports whether channelID is a one-to-one conversation.
func (b *Bot) IsDirectChannel(ctx context.Context, channelID string) (bool, error) {
	ch, err := b.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return false, fmt.Errorf("conversations.info %s: %w", channelID, err)
	}
	return ch.IsIM, nil
}

// Post sends text to channelID, threaded under threadTS when it is set.
func (b *Bot) Post(ctx context.Context, channelID, threadTS, text string) (bridge.MessageRef, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	ch, ts, err := b.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return bridge.MessageRef{}, fmt.Errorf("chat.postMessage: %w", err)
	}
	return bridge.MessageRef{ChannelID: ch, TS: ts, ThreadTS: threadTS}, nil
}

// Update replaces the text of a message the bot posted.
func (b *Bot) Update(ctx context.Context, ref bridge.MessageRef, text string) error {
	if _, _, _, err := b.api.UpdateMessageContext(ctx, ref.ChannelID, ref.TS, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("chat.update: %w", err)
	}
	return nil
}

// DownloadURL resolves a file ID to its private download URL.
func (b *Bot) DownloadURL(ctx context.Context, fileID string) (string, error) {
	file, _, _, err := b.api.GetFileInfoContext(ctx, fileID, 0, 0)
	if err != nil {
		return "", fmt.Errorf("files.info %s: %w", fileID, err)
	}
	if file.URLPrivateDownload != "" {
		return file.URLPrivateDownload, nil
	}
	if file.URLPrivate != "" {
		return file.URLPrivate, nil
	}
	return "", fmt.Errorf("file %s has no download URL", fileID)
}

// Download fetches url with the bot token and writes the body to w.
func (b *Bot) Download(ctx context.Context, url string, w io.Writer) error {
	if err := b.api.GetFileContext(ctx, url, w); err != nil {
		return fmt.Errorf("downloading file: %w", err)
	}
	return nil
}
