// ABOUTME: Downloads image attachments from the chat platform and encodes them as data URIs
// ABOUTME: Non-images are skipped; a failed download is logged and dropped without aborting the batch

package attachment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/slack-dify-bridge/internal/dify"
)

// DefaultDownloadTimeout bounds a single file download.
const DefaultDownloadTimeout = 30 * time.Second

// defaultName is used when the platform reports no file name.
const defaultName = "image.png"

// Ref is an attachment as announced by the platform, not yet downloaded.
type Ref struct {
	ID       string
	Name     string
	MimeType string
}

// Source resolves and fetches attachment content from the platform.
type Source interface {
	// DownloadURL resolves a file ID to its private download URL.
	DownloadURL(ctx context.Context, fileID string) (string, error)
	// Download writes the authenticated content at url into w.
	Download(ctx context.Context, url string, w io.Writer) error
}

// Extractor turns attachment refs into upload-ready files.
type Extractor struct {
	source  Source
	timeout time.Duration
	logger  *slog.Logger
}

// NewExtractor creates an Extractor. A zero timeout uses DefaultDownloadTimeout.
func NewExtractor(source Source, timeout time.Duration, logger *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		source:  source,
		timeout: timeout,
		logger:  logger.With("component", "attachment"),
	}
}

// IsImage reports whether a declared MIME type is an image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// Extract downloads every image ref in order. The result never contains
// placeholders: skipped and failed refs are simply absent.
func (e *Extractor) Extract(ctx context.Context, refs []Ref) []dify.FileInfo {
	files := make([]dify.FileInfo, 0, len(refs))
	for _, ref := range refs {
		if !IsImage(ref.MimeType) {
			continue
		}
		file, err := e.fetch(ctx, ref)
		if err != nil {
			e.logger.Error("failed to download file", "file_id", ref.ID, "name", ref.Name, "error", err)
			continue
		}
		files = append(files, file)
	}
	return files
}

// fetch downloads one ref under its own deadline. The deadline cancels the
// in-flight HTTP request.
func (e *Extractor) fetch(ctx context.Context, ref Ref) (dify.FileInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	url, err := e.source.DownloadURL(ctx, ref.ID)
	if err != nil {
		return dify.FileInfo{}, fmt.Errorf("resolving download url: %w", err)
	}
	if url == "" {
		return dify.FileInfo{}, fmt.Errorf("file %s has no download url", ref.ID)
	}

	var buf bytes.Buffer
	if err := e.source.Download(ctx, url, &buf); err != nil {
		return dify.FileInfo{}, fmt.Errorf("downloading: %w", err)
	}

	name := ref.Name
	if name == "" {
		name = defaultName
	}
	return dify.FileInfo{
		Data:     dify.DataURI(ref.MimeType, buf.Bytes()),
		Name:     name,
		MimeType: ref.MimeType,
	}, nil
}
