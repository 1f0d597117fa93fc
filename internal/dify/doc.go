// Package dify is a small client for the Dify chat application API.
//
// Three endpoints are used:
//
//   - POST /files/upload     multipart image upload, returns a file ID
//   - POST /chat-messages    blocking chat completion
//   - GET  /parameters       liveness probe
//
// SendMessage uploads any attached images concurrently before composing the
// chat request. If any upload fails the chat request is never sent.
package dify
