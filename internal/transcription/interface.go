package transcription

import (
	"context"

	"github.com/mkorzh/audioscribe/internal/audio"
)

// Transcriber converts one audio payload into text using a caller-supplied
// credential
type Transcriber interface {
	Transcribe(ctx context.Context, apiKey string, seg audio.Segment) (string, error)
}

// Ensure the OpenAI client implements the interface
var _ Transcriber = (*Client)(nil)
