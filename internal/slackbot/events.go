// ABOUTME: Decodes raw Socket Mode callback payloads into bridge events
// ABOUTME: Pure functions so event filtering can be tested without a socket

package slackbot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389/slack-dify-bridge/internal/attachment"
	"github.com/2389/slack-dify-bridge/internal/bridge"
	"github.com/2389/slack-dify-bridge/internal/dedupe"
)

// Event kinds used in dedupe keys.
const (
	kindMention = "app_mention"
	kindMessage = "message"
)

// callbackEnvelope is the events_api payload delivered over Socket Mode.
type callbackEnvelope struct {
	Type    string        `json:"type"`
	EventID string        `json:"event_id"`
	Event   callbackEvent `json:"event"`
}

// callbackEvent holds the fields of app_mention and message events that the
// bridge reads, decoded straight from the raw payload so both kinds expose
// files and subtype the same way.
type callbackEvent struct {
	Type        string     `json:"type"`
	Subtype     string     `json:"subtype"`
	User        string     `json:"user"`
	BotID       string     `json:"bot_id"`
	Text        string     `json:"text"`
	Channel     string     `json:"channel"`
	ChannelType string     `json:"channel_type"`
	TS          string     `json:"ts"`
	ThreadTS    string     `json:"thread_ts"`
	Files       []fileInfo `json:"files"`
}

type fileInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Mimetype string `json:"mimetype"`
}

// decodeEnvelope parses a raw events_api payload.
func decodeEnvelope(payload []byte) (*callbackEnvelope, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decoding events payload: %w", err)
	}
	return &env, nil
}

// normalize turns a callback event into a bridge event plus its dedupe key.
// ok is false for events the bridge does not handle.
func normalize(ev callbackEvent) (evt bridge.Event, key string, ok bool) {
	switch ev.Type {
	case kindMention:
		if ev.Channel == "" || ev.User == "" {
			return nil, "", false
		}
		return &bridge.Mention{
			ChannelID: ev.Channel,
			UserID:    ev.User,
			Text:      ev.Text,
			TS:        ev.TS,
			ThreadTS:  ev.ThreadTS,
			Files:     refs(ev.Files),
		}, dedupe.Key(kindMention, ev.Channel, ev.TS), true

	case kindMessage:
		// Edits, deletions, joins and bot_message all carry a subtype.
		if ev.Subtype != "" && ev.Subtype != "file_share" {
			return nil, "", false
		}
		// Channel mentions arrive as app_mention as well; only DMs pass here.
		if ev.ChannelType != "" && ev.ChannelType != "im" {
			return nil, "", false
		}
		if ev.Channel == "" || ev.User == "" {
			return nil, "", false
		}
		return &bridge.DirectMessage{
			ChannelID: ev.Channel,
			UserID:    ev.User,
			Text:      ev.Text,
			TS:        ev.TS,
			FromBot:   strings.TrimSpace(ev.BotID) != "",
			Files:     refs(ev.Files),
		}, dedupe.Key(kindMessage, ev.Channel, ev.TS), true
	}
	return nil, "", false
}

func refs(files []fileInfo) []attachment.Ref {
	if len(files) == 0 {
		return nil
	}
	out := make([]attachment.Ref, 0, len(files))
	for _, f := range files {
		out = append(out, attachment.Ref{ID: f.ID, Name: f.Name, MimeType: f.Mimetype})
	}
	return out
}
