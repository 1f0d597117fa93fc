// ABOUTME: Event router: validates Slack events, calls the backend under a deadline, and edits replies
// ABOUTME: The conversation store is the only state shared between concurrently handled events

package bridge

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/slack-dify-bridge/internal/attachment"
	"github.com/2389/slack-dify-bridge/internal/conversation"
	"github.com/2389/slack-dify-bridge/internal/dify"
	"github.com/2389/slack-dify-bridge/internal/mrkdwn"
	"github.com/2389/slack-dify-bridge/internal/store"
)

// DefaultReplyTimeout is how long a turn waits for the backend.
const DefaultReplyTimeout = 60 * time.Second

// ErrReplyTimeout means the backend did not answer within the reply timeout.
var ErrReplyTimeout = errors.New("reply timed out")

// ErrEmptyAnswer means the backend answered with no text.
var ErrEmptyAnswer = errors.New("backend returned an empty answer")

// ledgerTimeout bounds a transcript write.
const ledgerTimeout = 5 * time.Second

// MessageRef is a handle to a posted message that can be edited later.
type MessageRef struct {
	ChannelID string
	TS        string
	ThreadTS  string
}

// Platform is what the router needs from the chat platform.
type Platform interface {
	BotUserID(ctx context.Context) (string, error)
	IsDirectChannel(ctx context.Context, channelID string) (bool, error)
	// Post sends text to a channel; threadTS may be empty.
	Post(ctx context.Context, channelID, threadTS, text string) (MessageRef, error)
	Update(ctx context.Context, ref MessageRef, text string) error
}

// Backend answers queries.
type Backend interface {
	SendMessage(ctx context.Context, query, user, conversationID string, files []dify.FileInfo) (*dify.ChatResponse, error)
}

// Extractor downloads attachments.
type Extractor interface {
	Extract(ctx context.Context, refs []attachment.Ref) []dify.FileInfo
}

// Options tune a Router. Zero values select defaults.
type Options struct {
	ReplyTimeout    time.Duration
	ConvertMarkdown bool
	Messages        Messages
	// Transcripts, when set, receives one Turn per answered event.
	Transcripts store.TranscriptStore
}

// Router handles inbound events one at a time per call; callers may invoke
// it from many goroutines at once.
type Router struct {
	platform      Platform
	backend       Backend
	extractor     Extractor
	conversations conversation.Store
	transcripts   store.TranscriptStore

	replyTimeout    time.Duration
	convertMarkdown bool
	messages        Messages
	logger          *slog.Logger

	botMu sync.Mutex
	botID string
}

// New creates a Router.
func New(platform Platform, backend Backend, extractor Extractor, conversations conversation.Store, opts Options, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.ReplyTimeout
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	return &Router{
		platform:        platform,
		backend:         backend,
		extractor:       extractor,
		conversations:   conversations,
		transcripts:     opts.Transcripts,
		replyTimeout:    timeout,
		convertMarkdown: opts.ConvertMarkdown,
		messages:        opts.Messages.withDefaults(),
		logger:          logger.With("component", "router"),
	}
}

// Handle dispatches an event to its variant handler.
func (r *Router) Handle(ctx context.Context, evt Event) {
	switch e := evt.(type) {
	case *Mention:
		r.HandleMention(ctx, e)
	case *DirectMessage:
		r.HandleDirectMessage(ctx, e)
	}
}

// HandleMention answers a message that addresses the bot.
func (r *Router) HandleMention(ctx context.Context, m *Mention) {
	query := StripMention(m.Text, r.botUserID(ctx))
	thread := m.replyThread()

	if query == "" {
		if _, err := r.platform.Post(ctx, m.ChannelID, thread, r.messages.Greeting); err != nil {
			r.logger.Error("failed to post greeting", "channel", m.ChannelID, "error", err)
		}
		return
	}

	r.converse(ctx, &turn{
		kind:     store.KindMention,
		key:      m.conversationKey(),
		query:    query,
		threadTS: thread,
		files:    m.Files,
	})
}

// HandleDirectMessage answers a message in a one-to-one channel.
func (r *Router) HandleDirectMessage(ctx context.Context, d *DirectMessage) {
	if strings.TrimSpace(d.Text) == "" || d.FromBot {
		return
	}

	isDirect, err := r.platform.IsDirectChannel(ctx, d.ChannelID)
	if err != nil {
		r.logger.Debug("channel lookup failed, ignoring message", "channel", d.ChannelID, "error", err)
		return
	}
	if !isDirect {
		return
	}

	r.converse(ctx, &turn{
		kind:  store.KindDirectMessage,
		key:   d.conversationKey(),
		query: d.Text,
		files: d.Files,
	})
}

// turn carries one validated event through the backend round-trip.
type turn struct {
	kind     string
	key      conversation.Key
	query    string
	threadTS string
	files    []attachment.Ref
}

func (r *Router) converse(ctx context.Context, t *turn) {
	started := time.Now()
	record := &store.Turn{
		ID:              uuid.New().String(),
		ConversationKey: t.key.String(),
		Kind:            t.kind,
		ChannelID:       t.key.ChannelID,
		UserID:          t.key.UserID,
		Query:           t.query,
		CreatedAt:       started,
	}
	logger := r.logger.With(
		"turn_id", record.ID,
		"kind", t.kind,
		"channel", t.key.ChannelID,
		"user", t.key.UserID,
	)

	placeholder, err := r.platform.Post(ctx, t.key.ChannelID, t.threadTS, r.messages.Processing)
	if err != nil {
		logger.Error("failed to post placeholder", "error", err)
		if _, err := r.platform.Post(ctx, t.key.ChannelID, t.threadTS, r.messages.Error); err != nil {
			logger.Error("failed to post error reply", "error", err)
		}
		r.finish(ctx, logger, record, started, err)
		return
	}

	files := r.extractor.Extract(ctx, t.files)
	record.FileCount = len(files)
	conversationID, _ := r.conversations.Get(t.key)

	logger.Info("sending to backend",
		"files", len(files),
		"conversation_id", conversationID,
	)

	resp, err := r.dispatch(ctx, t.query, t.key.UserID, conversationID, files)
	if err != nil {
		text := r.messages.Error
		if errors.Is(err, ErrReplyTimeout) {
			text = r.messages.Timeout
		}
		r.reply(ctx, logger, placeholder, text)
		r.finish(ctx, logger, record, started, err)
		return
	}

	r.conversations.Set(t.key, resp.ConversationID)
	record.ConversationID = resp.ConversationID
	record.Answer = resp.Answer

	answer := resp.Answer
	if r.convertMarkdown {
		answer = mrkdwn.Convert(answer)
	}
	if strings.TrimSpace(answer) == "" {
		r.reply(ctx, logger, placeholder, r.messages.Error)
		r.finish(ctx, logger, record, started, ErrEmptyAnswer)
		return
	}

	r.reply(ctx, logger, placeholder, answer)
	r.finish(ctx, logger, record, started, nil)
}

// dispatch races the backend call against the reply timeout. The backend
// call runs detached from ctx so neither the timeout nor shutdown cancels
// the outbound request; a late result lands in the buffered channel and is
// dropped.
func (r *Router) dispatch(ctx context.Context, query, user, conversationID string, files []dify.FileInfo) (*dify.ChatResponse, error) {
	type result struct {
		resp *dify.ChatResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := r.backend.SendMessage(context.WithoutCancel(ctx), query, user, conversationID, files)
		done <- result{resp: resp, err: err}
	}()

	timer := time.NewTimer(r.replyTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err == nil && res.resp == nil {
			return nil, ErrEmptyAnswer
		}
		return res.resp, res.err
	case <-timer.C:
		return nil, ErrReplyTimeout
	}
}

// reply edits the placeholder. If the edit fails the text is posted as a
// new message in the same thread.
func (r *Router) reply(ctx context.Context, logger *slog.Logger, placeholder MessageRef, text string) {
	err := r.platform.Update(ctx, placeholder, text)
	if err == nil {
		return
	}
	logger.Warn("failed to edit placeholder, posting instead", "error", err)
	if _, err := r.platform.Post(ctx, placeholder.ChannelID, placeholder.ThreadTS, text); err != nil {
		logger.Error("failed to post reply", "error", err)
	}
}

// finish logs the outcome and appends it to the transcript ledger.
func (r *Router) finish(ctx context.Context, logger *slog.Logger, record *store.Turn, started time.Time, err error) {
	record.Duration = time.Since(started)
	switch {
	case err == nil:
		record.Status = store.TurnStatusOK
		logger.Info("turn answered", "duration", record.Duration, "conversation_id", record.ConversationID)
	case errors.Is(err, ErrReplyTimeout):
		record.Status = store.TurnStatusTimeout
		record.Error = err.Error()
		logger.Warn("turn timed out", "duration", record.Duration)
	default:
		record.Status = store.TurnStatusError
		record.Error = err.Error()
		logger.Error("turn failed", "duration", record.Duration, "error", err)
	}

	if r.transcripts == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := r.transcripts.SaveTurn(saveCtx, record); err != nil {
		logger.Error("failed to record turn", "error", err)
	}
}

// botUserID returns the bot's own user ID, or "" if the lookup fails.
// A successful lookup is cached for the life of the router.
func (r *Router) botUserID(ctx context.Context) string {
	r.botMu.Lock()
	defer r.botMu.Unlock()

	if r.botID != "" {
		return r.botID
	}
	id, err := r.platform.BotUserID(ctx)
	if err != nil {
		r.logger.Error("failed to get bot user ID", "error", err)
		return ""
	}
	r.botID = id
	return id
}

// StripMention removes every <@botID> (or <@botID|name>) token from text and
// trims the result. With an empty botID only the trim is applied.
func StripMention(text, botID string) string {
	if botID == "" {
		return strings.TrimSpace(text)
	}
	re := regexp.MustCompile(`<@` + regexp.QuoteMeta(botID) + `(\|[^>]*)?>`)
	return strings.TrimSpace(re.ReplaceAllString(text, ""))
}
