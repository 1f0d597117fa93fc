// Package dedupe suppresses inbound Slack events that are delivered more than
// once. Socket Mode redelivers an envelope when its ack arrives late, and the
// same user message can arrive again with retry_attempt > 0; the bridge must
// answer it only once.
package dedupe
