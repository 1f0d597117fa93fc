// Package bridge routes Slack messages to the Dify backend and posts replies.
//
// # Events
//
// Two inbound variants implement Event:
//
//   - *Mention: the bot was addressed as <@BOT> in a channel. Replies are
//     threaded under the mention (or its existing thread).
//   - *DirectMessage: a message in a one-to-one channel with the bot. It is
//     answered only if it has text, was not sent by a bot, and the platform
//     confirms the channel is a direct channel.
//
// # Turn lifecycle
//
//  1. Validate the event (direct messages only).
//  2. Strip the bot's mention token. A blank mention gets a greeting and stops.
//  3. Post a "processing" placeholder and keep its handle.
//  4. Extract image attachments and look up the conversation ID.
//  5. Call the backend, racing a reply timeout (60s by default). The first to
//     finish wins. A late backend result is discarded; the HTTP request is
//     not cancelled and may still complete server-side.
//  6. On success, store the new conversation ID, then edit the placeholder
//     to show the answer.
//  7. On timeout or error, edit the placeholder to a localized retry message.
//
// Every failure is contained in its turn; nothing propagates to the caller.
package bridge
