package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/mkorzh/audioscribe/pkg/logger"
)

// FetchClient downloads audio payloads from remote URLs so they can be
// transcribed like direct uploads
type FetchClient struct {
	httpClient *http.Client
	maxBytes   int64
	logger     *logger.Logger
}

// NewFetchClient creates a new client for fetching remote audio.
// maxBytes bounds how much of the remote body is accepted.
func NewFetchClient(timeout time.Duration, maxBytes int64, logger *logger.Logger) *FetchClient {
	return &FetchClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBytes: maxBytes,
		logger:   logger.Named("audio-fetch"),
	}
}

// Fetch downloads the audio at rawURL and wraps it as an Upload. The
// filename is derived from the URL path and the MIME type from the
// response Content-Type header.
func (c *FetchClient) Fetch(ctx context.Context, rawURL string) (Upload, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Upload{}, fmt.Errorf("invalid audio URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "audio/*")

	c.logger.Debug("Fetching remote audio", logger.String("url", rawURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Upload{}, fmt.Errorf("unexpected status code fetching audio: %d", resp.StatusCode)
	}

	// Read one byte past the cap so oversized bodies are detectable
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read audio body: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return Upload{}, fmt.Errorf("remote audio exceeds maximum size of %d bytes", c.maxBytes)
	}

	filename := path.Base(parsed.Path)
	if filename == "" || filename == "/" || filename == "." {
		filename = "audio"
	}

	c.logger.Debug("Fetched remote audio",
		logger.String("url", rawURL),
		logger.Int("bytes", len(data)),
		logger.String("content_type", resp.Header.Get("Content-Type")),
	)

	return Upload{
		Data:     data,
		Filename: filename,
		MIMEType: resp.Header.Get("Content-Type"),
	}, nil
}
