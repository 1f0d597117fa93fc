// ABOUTME: HTTP client for the Dify chat API: uploads, blocking chat, and liveness probe
// ABOUTME: Uploads run concurrently and any single failure aborts the chat request

package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the hosted Dify API.
const DefaultBaseURL = "https://api.dify.ai/v1"

// DefaultUploadUser is the end-user identifier attached to every upload.
const DefaultUploadUser = "slack-bot"

// Options configures a Client.
type Options struct {
	BaseURL       string
	APIKey        string
	UploadUser    string        // defaults to DefaultUploadUser
	UploadTimeout time.Duration // per-upload deadline, 0 means none
	HTTPClient    *http.Client  // defaults to a client with a 120s timeout
	Debug         bool          // log request and response bodies
}

// Client talks to one Dify application.
type Client struct {
	baseURL       string
	apiKey        string
	uploadUser    string
	uploadTimeout time.Duration
	http          *http.Client
	debug         bool
	logger        *slog.Logger
}

// NewClient creates a Dify client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	uploadUser := opts.UploadUser
	if uploadUser == "" {
		uploadUser = DefaultUploadUser
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		apiKey:        opts.APIKey,
		uploadUser:    uploadUser,
		uploadTimeout: opts.UploadTimeout,
		http:          httpClient,
		debug:         opts.Debug,
		logger:        logger.With("component", "dify"),
	}
}

// UploadFile uploads one image and returns the Dify file ID.
func (c *Client) UploadFile(ctx context.Context, file FileInfo) (string, error) {
	data, err := ParseDataURI(file.Data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", file.Name, err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.MimeType)
	part, err := form.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing form file: %w", err)
	}
	if err := form.WriteField("user", c.uploadUser); err != nil {
		return "", fmt.Errorf("writing form field: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	if c.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.uploadTimeout)
		defer cancel()
	}

	var resp UploadResponse
	if err := c.do(ctx, http.MethodPost, "/files/upload", form.FormDataContentType(), &body, &resp); err != nil {
		c.logger.Error("file upload failed", "name", file.Name, "error", err)
		return "", err
	}

	if c.debug {
		c.logger.Debug("file upload response", "id", resp.ID, "name", resp.Name, "size", resp.Size)
	}
	return resp.ID, nil
}

// SendMessage sends a blocking chat request. An empty conversationID starts a
// new conversation. Files are uploaded concurrently first; if any upload
// fails no chat request is made.
func (c *Client) SendMessage(ctx context.Context, query, user, conversationID string, files []FileInfo) (*ChatResponse, error) {
	fileIDs, err := c.uploadAll(ctx, files)
	if err != nil {
		return nil, err
	}

	req := ChatRequest{
		Inputs:         map[string]any{},
		Query:          query,
		User:           user,
		ResponseMode:   ResponseModeBlocking,
		ConversationID: conversationID,
	}
	for _, id := range fileIDs {
		req.Files = append(req.Files, FileRef{
			Type:           FileTypeImage,
			TransferMethod: TransferMethodLocalFile,
			UploadFileID:   id,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	if c.debug {
		c.logger.Debug("sending chat message", "body", string(body))
	}

	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat-messages", "application/json", bytes.NewReader(body), &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.logger.Error("chat request rejected", "status", apiErr.StatusCode, "message", apiErr.Message)
		} else {
			c.logger.Error("chat request failed", "error", err)
		}
		return nil, err
	}

	if c.debug {
		c.logger.Debug("chat response",
			"conversation_id", resp.ConversationID,
			"message_id", resp.MessageID,
			"answer", resp.Answer,
		)
	}
	return &resp, nil
}

// uploadAll uploads files concurrently and returns their IDs in input order.
func (c *Client) uploadAll(ctx context.Context, files []FileInfo) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	c.logger.Info("uploading files", "count", len(files))

	ids := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		g.Go(func() error {
			id, err := c.UploadFile(gctx, file)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// TestConnection probes GET /parameters. A 404 still proves the API is
// reachable. It never returns an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	err := c.do(ctx, http.MethodGet, "/parameters", "", nil, nil)
	if err == nil {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	c.logger.Warn("dify connection test failed", "error", err)
	return false
}

// do issues an authenticated request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dify API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// handleErrorResponse turns a non-2xx response into an *APIError, keeping the
// backend-provided message when the body is Dify's JSON error shape.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var parsed APIError
	if json.Unmarshal(body, &parsed) == nil {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	}
	return apiErr
}
