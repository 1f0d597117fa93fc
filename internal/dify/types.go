// ABOUTME: Wire types for the Dify chat API
// ABOUTME: Request/response bodies plus the normalized FileInfo accepted for upload

package dify

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ResponseModeBlocking asks Dify to answer synchronously.
const ResponseModeBlocking = "blocking"

// File reference constants for chat requests.
const (
	FileTypeImage           = "image"
	TransferMethodLocalFile = "local_file"
)

// ErrInvalidDataURI is returned when a FileInfo payload is not a base64 data URI.
var ErrInvalidDataURI = errors.New("invalid data URI")

// FileInfo is a fully downloaded attachment ready for upload.
// Data holds a data URI of the form "data:<mime>;base64,<payload>".
type FileInfo struct {
	Data     string
	Name     string
	MimeType string
}

// FileRef points a chat request at a previously uploaded file.
type FileRef struct {
	Type           string `json:"type"`
	TransferMethod string `json:"transfer_method"`
	UploadFileID   string `json:"upload_file_id"`
}

// ChatRequest is the body of POST /chat-messages.
// ConversationID and Files are omitted entirely when empty so the backend
// starts a fresh conversation instead of receiving an empty ID.
type ChatRequest struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query"`
	User           string         `json:"user"`
	ResponseMode   string         `json:"response_mode"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Files          []FileRef      `json:"files,omitempty"`
}

// ChatResponse is the blocking-mode answer from POST /chat-messages.
type ChatResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	CreatedAt      int64  `json:"created_at"`
}

// UploadResponse is the body returned by POST /files/upload.
type UploadResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	MimeType  string `json:"mime_type"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}

// APIError is a non-2xx answer from Dify.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("dify API error: %s", e.Message)
	}
	return fmt.Sprintf("dify API error: status %d", e.StatusCode)
}

// DataURI wraps raw bytes as a base64 data URI with the given MIME type.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI strips the "data:<mime>;base64," prefix and decodes the payload.
func ParseDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrInvalidDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return data, nil
}
