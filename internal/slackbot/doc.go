// ABOUTME: Package slackbot connects the bridge to Slack over Socket Mode
// ABOUTME: It normalizes events for the router and implements the router's platform calls

// Package slackbot is the Slack side of the bridge.
//
// A Bot owns one slack.Client (Web API) and one socketmode.Client. Run acks
// every envelope immediately, turns app_mention and message callbacks into
// bridge events, drops redelivered ones through a dedupe cache, and hands
// each surviving event to the handler on its own goroutine. On shutdown Run
// stops reading new envelopes and waits up to the grace period for
// in-flight turns.
//
// Bot also implements bridge.Platform (post, edit, channel lookup, own user
// ID) and attachment.Source (private file download with the bot token).
package slackbot
