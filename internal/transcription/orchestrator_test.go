package transcription

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkorzh/audioscribe/internal/audio"
	"github.com/mkorzh/audioscribe/pkg/logger"
)

// fakeTranscriber returns canned text per segment ordinal. The
// orchestrator is strictly sequential, so no locking is needed.
type fakeTranscriber struct {
	results map[int]string
	errs    map[int]error
	keys    []string
	calls   []audio.Segment
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, apiKey string, seg audio.Segment) (string, error) {
	f.keys = append(f.keys, apiKey)
	f.calls = append(f.calls, seg)
	if err, ok := f.errs[seg.Ordinal]; ok {
		return "", err
	}
	return f.results[seg.Ordinal], nil
}

func collect(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for event channel to close")
		}
	}
}

func newTestOrchestrator(fake *fakeTranscriber, maxSegmentBytes int, defaultKey string) *Orchestrator {
	segmenter := audio.NewSegmenter(maxSegmentBytes, 30*time.Second)
	return NewOrchestrator(fake, segmenter, defaultKey, logger.NewNop())
}

func audioUpload(size int) audio.Upload {
	return audio.Upload{
		Data:     make([]byte, size),
		Filename: "talk.mp3",
		MIMEType: "audio/mpeg",
	}
}

func TestRunEmitsOrderedEvents(t *testing.T) {
	fake := &fakeTranscriber{results: map[int]string{1: "first part.", 2: "second part.", 3: "third part."}}
	o := newTestOrchestrator(fake, 10, "default-key")

	events := collect(t, o.Run(context.Background(), audioUpload(30), ""))

	var statuses []string
	for _, ev := range events {
		statuses = append(statuses, ev.Status)
	}
	assert.Equal(t, []string{
		StatusProcessing,
		StatusSegmented,
		StatusTranscribing, StatusPartial,
		StatusTranscribing, StatusPartial,
		StatusTranscribing, StatusPartial,
		StatusComplete,
	}, statuses)

	segmented := events[1]
	assert.Equal(t, 3, segmented.TotalSegments)

	final := events[len(events)-1]
	assert.Equal(t, "First part. Second part. Third part.", final.Transcription)

	// Partials carry the segment's own text and the running transcript
	assert.Equal(t, "First part.", events[3].Text)
	assert.Equal(t, "First part.", events[3].FullText)
	assert.Equal(t, "Second part.", events[5].Text)
	assert.Equal(t, "First part. Second part.", events[5].FullText)
}

func TestRunSegmentFailureContinues(t *testing.T) {
	fake := &fakeTranscriber{
		results: map[int]string{1: "A.", 3: "C."},
		errs:    map[int]error{2: fmt.Errorf("provider hiccup")},
	}
	o := newTestOrchestrator(fake, 10, "default-key")

	events := collect(t, o.Run(context.Background(), audioUpload(30), ""))

	var errEvents, partials []StreamEvent
	for _, ev := range events {
		switch ev.Status {
		case StatusError:
			errEvents = append(errEvents, ev)
		case StatusPartial:
			partials = append(partials, ev)
		}
	}

	require.Len(t, errEvents, 1)
	assert.Equal(t, 2, errEvents[0].CurrentSegment)
	assert.Contains(t, errEvents[0].Error, "provider hiccup")
	assert.False(t, errEvents[0].Terminal())

	// Segments 1 and 3 still produced text; the failed one contributed none
	require.Len(t, partials, 2)

	final := events[len(events)-1]
	assert.Equal(t, StatusComplete, final.Status)
	assert.Equal(t, "A. C.", final.Transcription)

	// All three segments were attempted
	assert.Len(t, fake.calls, 3)
}

func TestRunFragmentsCleanedIndependently(t *testing.T) {
	fake := &fakeTranscriber{results: map[int]string{1: "A.", 2: "b.", 3: "C."}}
	o := newTestOrchestrator(fake, 10, "default-key")

	events := collect(t, o.Run(context.Background(), audioUpload(30), ""))

	final := events[len(events)-1]
	assert.Equal(t, "A. B. C.", final.Transcription)
}

func TestRunMissingFile(t *testing.T) {
	fake := &fakeTranscriber{}
	o := newTestOrchestrator(fake, 10, "default-key")

	events := collect(t, o.Run(context.Background(), audio.Upload{MIMEType: "audio/mpeg"}, ""))

	require.Len(t, events, 1)
	assert.Equal(t, StatusError, events[0].Status)
	assert.Equal(t, "No file uploaded", events[0].Error)
	assert.True(t, events[0].Terminal())
	assert.Empty(t, fake.calls, "no provider call for a missing file")
}

func TestRunRejectsNonAudioMIME(t *testing.T) {
	fake := &fakeTranscriber{}
	o := newTestOrchestrator(fake, 10, "default-key")

	upload := audio.Upload{Data: []byte("x"), Filename: "doc.pdf", MIMEType: "application/pdf"}
	events := collect(t, o.Run(context.Background(), upload, ""))

	require.Len(t, events, 1)
	assert.Equal(t, "Uploaded file is not an audio file", events[0].Error)
	assert.Empty(t, fake.calls)
}

func TestRunMissingCredential(t *testing.T) {
	fake := &fakeTranscriber{}
	o := newTestOrchestrator(fake, 10, "")

	events := collect(t, o.Run(context.Background(), audioUpload(5), ""))

	require.Len(t, events, 1)
	assert.Equal(t, ErrNoCredential.Error(), events[0].Error)
	assert.Empty(t, fake.calls, "no provider call without a credential")
}

func TestRunCallerKeyWinsOverDefault(t *testing.T) {
	fake := &fakeTranscriber{results: map[int]string{1: "ok"}}
	o := newTestOrchestrator(fake, 1000, "default-key")

	collect(t, o.Run(context.Background(), audioUpload(5), "caller-key"))

	require.NotEmpty(t, fake.keys)
	assert.Equal(t, "caller-key", fake.keys[0])
}

func TestRunConsumerAbandonsStream(t *testing.T) {
	fake := &fakeTranscriber{results: map[int]string{1: "a", 2: "b", 3: "c"}}
	o := newTestOrchestrator(fake, 10, "default-key")

	ctx, cancel := context.WithCancel(context.Background())
	events := o.Run(ctx, audioUpload(30), "")

	// Read the first event, then walk away
	<-events
	cancel()

	// The producer must still close the channel rather than block forever
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("channel not closed after consumer abandoned the stream")
		}
	}
}

func TestResolveKey(t *testing.T) {
	o := newTestOrchestrator(&fakeTranscriber{}, 10, "default-key")

	key, err := o.ResolveKey("caller-key")
	require.NoError(t, err)
	assert.Equal(t, "caller-key", key)

	key, err = o.ResolveKey("")
	require.NoError(t, err)
	assert.Equal(t, "default-key", key)

	bare := newTestOrchestrator(&fakeTranscriber{}, 10, "")
	_, err = bare.ResolveKey("")
	assert.True(t, errors.Is(err, ErrNoCredential))
}
