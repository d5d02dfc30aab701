package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mkorzh/audioscribe/internal/audio"
	"github.com/mkorzh/audioscribe/pkg/logger"
)

// Client calls the OpenAI audio transcription API. One call per payload,
// no retries; failures are classified for the caller.
type Client struct {
	model      string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new transcription client
func NewClient(model string, timeout time.Duration, logger *logger.Logger) *Client {
	return &Client{
		model: model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("openai-client"),
	}
}

// Transcribe sends one audio payload to the transcription API and returns
// the transcript text. The credential is supplied per call so caller keys
// and the process default can share a client. It is never logged.
func (c *Client) Transcribe(ctx context.Context, apiKey string, seg audio.Segment) (string, error) {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(c.httpClient),
	)

	c.logger.Debug("Sending audio payload for transcription",
		logger.String("filename", seg.Filename),
		logger.Int("bytes", len(seg.Data)),
		logger.String("model", c.model),
	)

	result, err := client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(seg.Data), seg.Filename, seg.MIMEType),
		Model: openai.AudioModel(c.model),
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			if apierr.StatusCode == http.StatusUnauthorized {
				return "", &AuthError{Err: err}
			}
			return "", &ProviderError{StatusCode: apierr.StatusCode, Body: apierr.RawJSON()}
		}
		return "", fmt.Errorf("transcription request failed: %w", err)
	}

	if result == nil || result.Text == "" {
		return "", ErrEmptyResult
	}

	return result.Text, nil
}
