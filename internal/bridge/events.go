// ABOUTME: Inbound event variants handled by the router
// ABOUTME: Mention and DirectMessage form a closed tagged union via the Event interface

package bridge

import (
	"github.com/2389/slack-dify-bridge/internal/attachment"
	"github.com/2389/slack-dify-bridge/internal/conversation"
)

// Event is implemented only by *Mention and *DirectMessage.
type Event interface {
	conversationKey() conversation.Key
	isEvent()
}

// Mention is a channel message that addresses the bot.
type Mention struct {
	ChannelID string
	UserID    string
	Text      string // raw text including the <@BOT> token
	TS        string
	ThreadTS  string // empty when the mention is not inside a thread
	Files     []attachment.Ref
}

// DirectMessage is a message posted in a one-to-one channel.
type DirectMessage struct {
	ChannelID string
	UserID    string
	Text      string
	TS        string
	FromBot   bool
	Files     []attachment.Ref
}

func (m *Mention) conversationKey() conversation.Key {
	return conversation.Key{ChannelID: m.ChannelID, UserID: m.UserID}
}

func (m *Mention) isEvent() {}

// replyThread is the thread the bot answers in.
func (m *Mention) replyThread() string {
	if m.ThreadTS != "" {
		return m.ThreadTS
	}
	return m.TS
}

func (d *DirectMessage) conversationKey() conversation.Key {
	return conversation.Key{ChannelID: d.ChannelID, UserID: d.UserID}
}

func (d *DirectMessage) isEvent() {}
