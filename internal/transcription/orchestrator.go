package transcription

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mkorzh/audioscribe/internal/audio"
	"github.com/mkorzh/audioscribe/pkg/logger"
)

// Orchestrator turns one audio upload into an ordered sequence of
// StreamEvents over a single-producer channel. Segments are transcribed
// strictly one at a time so partial results arrive in ordinal order and
// the running transcript is always well-defined.
type Orchestrator struct {
	transcriber Transcriber
	segmenter   *audio.Segmenter
	defaultKey  string
	logger      *logger.Logger
}

// NewOrchestrator creates a new streaming orchestrator. defaultKey is the
// process-wide credential used when the caller does not supply one.
func NewOrchestrator(transcriber Transcriber, segmenter *audio.Segmenter, defaultKey string, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{
		transcriber: transcriber,
		segmenter:   segmenter,
		defaultKey:  defaultKey,
		logger:      logger.Named("orchestrator"),
	}
}

// ResolveKey returns the caller-supplied key if present, else the process
// default. Resolution happens once per request, never mid-pipeline.
func (o *Orchestrator) ResolveKey(callerKey string) (string, error) {
	if callerKey != "" {
		return callerKey, nil
	}
	if o.defaultKey != "" {
		return o.defaultKey, nil
	}
	return "", ErrNoCredential
}

// Run starts the pipeline for one upload and returns its event channel.
// The channel has exactly one producer and is closed after the terminal
// event on every path, including a panic mid-loop. The consumer may
// abandon ctx at any time; the producer then stops without error.
func (o *Orchestrator) Run(ctx context.Context, upload audio.Upload, callerKey string) <-chan StreamEvent {
	events := make(chan StreamEvent, 1)
	go o.run(ctx, upload, callerKey, events)
	return events
}

func (o *Orchestrator) run(ctx context.Context, upload audio.Upload, callerKey string, events chan<- StreamEvent) {
	jobID := uuid.NewString()
	log := o.logger.With(logger.String("job_id", jobID))
	state := StateIdle

	defer close(events)
	defer func() {
		if r := recover(); r != nil {
			state = StateFailed
			log.Error("Transcription job panicked",
				logger.Any("panic", r),
				logger.String("state", state.String()))
			o.emit(ctx, events, StreamEvent{Status: StatusError, Error: "internal error during transcription"})
		}
	}()

	if len(upload.Data) == 0 {
		state = StateFailed
		o.emit(ctx, events, StreamEvent{Status: StatusError, Error: "No file uploaded"})
		return
	}
	if !strings.HasPrefix(upload.MIMEType, "audio/") {
		state = StateFailed
		o.emit(ctx, events, StreamEvent{Status: StatusError, Error: "Uploaded file is not an audio file"})
		return
	}

	apiKey, err := o.ResolveKey(callerKey)
	if err != nil {
		state = StateFailed
		o.emit(ctx, events, StreamEvent{Status: StatusError, Error: err.Error()})
		return
	}

	state = StateSegmenting
	log.Info("Starting streaming transcription",
		logger.String("filename", upload.Filename),
		logger.Int("bytes", upload.Size()))

	if !o.emit(ctx, events, StreamEvent{Status: StatusProcessing, Message: "Segmenting audio..."}) {
		return
	}

	segments := o.segmenter.Split(upload)
	log.Debug("Upload segmented", logger.Int("segments", len(segments)))

	if !o.emit(ctx, events, StreamEvent{
		Status:        StatusSegmented,
		TotalSegments: len(segments),
		Message:       fmt.Sprintf("File split into %d segment(s) for processing", len(segments)),
	}) {
		return
	}

	var full strings.Builder
	for _, seg := range segments {
		state = StateTranscribing

		if !o.emit(ctx, events, StreamEvent{
			Status:         StatusTranscribing,
			CurrentSegment: seg.Ordinal,
			TotalSegments:  len(segments),
			Message:        fmt.Sprintf("Transcribing segment %d/%d...", seg.Ordinal, len(segments)),
		}) {
			return
		}

		text, err := o.transcriber.Transcribe(ctx, apiKey, seg)
		if err != nil {
			// One bad segment does not abort the job; it just
			// contributes no text.
			log.Warn("Segment transcription failed",
				logger.Int("segment", seg.Ordinal),
				logger.Error(err))
			if !o.emit(ctx, events, StreamEvent{
				Status:         StatusError,
				CurrentSegment: seg.Ordinal,
				Message:        fmt.Sprintf("Error on segment %d: %s", seg.Ordinal, err.Error()),
				Error:          err.Error(),
			}) {
				return
			}
			continue
		}

		cleaned := CleanTranscript(text)
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(cleaned)

		if !o.emit(ctx, events, StreamEvent{
			Status:         StatusPartial,
			CurrentSegment: seg.Ordinal,
			TotalSegments:  len(segments),
			Text:           cleaned,
			FullText:       full.String(),
		}) {
			return
		}
	}

	state = StateDone
	log.Info("Streaming transcription finished",
		logger.Int("segments", len(segments)),
		logger.Int("transcript_length", full.Len()),
		logger.String("state", state.String()))

	o.emit(ctx, events, StreamEvent{
		Status:        StatusComplete,
		Transcription: full.String(),
		Message:       "Transcription complete",
	})
}

// emit delivers one event unless the consumer has gone away
func (o *Orchestrator) emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
