// Package client is the Go consumer for the audioscribe transcription
// server. It drives the streaming endpoint and falls back to the
// synchronous endpoint when the stream cannot be established.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/mkorzh/audioscribe/pkg/logger"
)

// ErrTimeout is returned when the synchronous fallback exceeds its
// deadline. Callers should suggest a shorter file to the user.
var ErrTimeout = errors.New("transcription took too long, try a shorter audio file")

// TransportError indicates the event stream could not be established or
// the server does not speak SSE. It triggers the synchronous fallback.
type TransportError struct {
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("streaming transport unavailable: %v", e.Err)
}

// Unwrap returns the underlying transport failure
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Event is one progress notification decoded from the server's stream.
// Absent fields mean "unchanged from the previous event".
type Event struct {
	Status         string `json:"status,omitempty"`
	Message        string `json:"message,omitempty"`
	CurrentSegment int    `json:"currentSegment,omitempty"`
	TotalSegments  int    `json:"totalSegments,omitempty"`
	Text           string `json:"text,omitempty"`
	FullText       string `json:"fullText,omitempty"`
	Transcription  string `json:"transcription,omitempty"`
	Error          string `json:"error,omitempty"`
}

// State is the rolling view of a transcription job. Each incoming event
// updates only the fields it carries; previous values are preserved.
type State struct {
	Status         string
	Message        string
	CurrentSegment int
	TotalSegments  int
	Transcript     string
	Err            string
	InProgress     bool
}

// Apply folds one event into the state
func (s *State) Apply(ev Event) {
	if ev.Status != "" {
		s.Status = ev.Status
	}
	if ev.Message != "" {
		s.Message = ev.Message
	}
	if ev.CurrentSegment != 0 {
		s.CurrentSegment = ev.CurrentSegment
	}
	if ev.TotalSegments != 0 {
		s.TotalSegments = ev.TotalSegments
	}
	if ev.FullText != "" {
		s.Transcript = ev.FullText
	}
	if ev.Transcription != "" {
		s.Transcript = ev.Transcription
	}
	if ev.Error != "" {
		s.Err = ev.Error
	}
	switch {
	case ev.Status == "complete":
		s.InProgress = false
	case ev.Error != "" && ev.CurrentSegment == 0:
		// Stream-level error ends the job; segment errors do not
		s.InProgress = false
	default:
		s.InProgress = true
	}
}

// Client talks to an audioscribe server
type Client struct {
	baseURL         string
	httpClient      *http.Client
	fallbackTimeout time.Duration
	logger          *logger.Logger
}

// New creates a new client for the server at baseURL
func New(baseURL string, logger *logger.Logger) *Client {
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{},
		fallbackTimeout: 120 * time.Second,
		logger:          logger.Named("client"),
	}
}

// SetFallbackTimeout overrides the deadline for the synchronous fallback
func (c *Client) SetFallbackTimeout(d time.Duration) {
	c.fallbackTimeout = d
}

// Transcribe uploads the audio and returns the final transcript. The
// streaming endpoint is tried first; if the transport cannot be
// established the synchronous endpoint is called once instead. onEvent,
// when non-nil, receives every decoded stream event in arrival order.
func (c *Client) Transcribe(ctx context.Context, data []byte, filename, mimeType, apiKey string, onEvent func(Event)) (string, error) {
	text, err := c.TranscribeStream(ctx, data, filename, mimeType, apiKey, onEvent)
	if err == nil {
		return text, nil
	}

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		return "", err
	}

	c.logger.Warn("Streaming transport unavailable, falling back to synchronous request",
		logger.Error(err))
	return c.TranscribeSync(ctx, data, filename, mimeType, apiKey)
}

// TranscribeStream drives the streaming endpoint and returns the final
// transcript from the terminal complete event. Transport failures come
// back as *TransportError so callers can fall back.
func (c *Client) TranscribeStream(ctx context.Context, data []byte, filename, mimeType, apiKey string, onEvent func(Event)) (string, error) {
	body, contentType, err := buildMultipart(data, filename, mimeType, apiKey)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transcribe/stream", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return "", &TransportError{Err: fmt.Errorf("server does not support streaming, got content type %q", ct)}
	}

	return c.consumeStream(resp.Body, onEvent)
}

// consumeStream decodes the newline-delimited event records, buffering
// partial records across read boundaries, and dispatches each complete
// record in arrival order
func (c *Client) consumeStream(r io.Reader, onEvent func(Event)) (string, error) {
	var state State
	var payload []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	dispatch := func(record string) (done bool, err error) {
		var ev Event
		if err := json.Unmarshal([]byte(record), &ev); err != nil {
			return false, fmt.Errorf("malformed stream event: %w", err)
		}
		state.Apply(ev)
		if onEvent != nil {
			onEvent(ev)
		}
		if ev.Status == "complete" {
			return true, nil
		}
		if ev.Error != "" && ev.CurrentSegment == 0 {
			return true, fmt.Errorf("transcription failed: %s", ev.Error)
		}
		return false, nil
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if len(payload) == 0 {
				continue
			}
			record := strings.Join(payload, "\n")
			payload = payload[:0]
			done, err := dispatch(record)
			if err != nil {
				return "", err
			}
			if done {
				return state.Transcript, nil
			}
			continue
		}

		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			payload = append(payload, strings.TrimPrefix(rest, " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading event stream: %w", err)
	}

	return "", fmt.Errorf("event stream ended without a terminal event")
}

// syncResponse is the synchronous endpoint's JSON body
type syncResponse struct {
	Transcription string `json:"transcription"`
	Success       bool   `json:"success"`
	Error         string `json:"error"`
	Details       string `json:"details"`
}

// TranscribeSync calls the synchronous endpoint once with a bounded
// deadline. A deadline hit maps to ErrTimeout.
func (c *Client) TranscribeSync(ctx context.Context, data []byte, filename, mimeType, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fallbackTimeout)
	defer cancel()

	body, contentType, err := buildMultipart(data, filename, mimeType, apiKey)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transcribe", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("malformed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		}
		return "", fmt.Errorf("transcription failed: %s", msg)
	}

	return decoded.Transcription, nil
}

// buildMultipart assembles the upload form shared by both endpoints
func buildMultipart(data []byte, filename, mimeType, apiKey string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	if apiKey != "" {
		if err := writer.WriteField("apiKey", apiKey); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}
