package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkorzh/audioscribe/pkg/logger"
)

func sseHandler(events []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, ev := range events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
			flusher.Flush()
		}
	}
}

func TestTranscribeStreamHappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/transcribe/stream", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "secret", r.FormValue("apiKey"))

		sseHandler([]string{
			`{"status":"processing","message":"Segmenting audio..."}`,
			`{"status":"segmented","totalSegments":2}`,
			`{"status":"transcribing","currentSegment":1,"totalSegments":2}`,
			`{"status":"partial","currentSegment":1,"text":"Hello.","fullText":"Hello."}`,
			`{"status":"transcribing","currentSegment":2,"totalSegments":2}`,
			`{"status":"partial","currentSegment":2,"text":"World.","fullText":"Hello. World."}`,
			`{"status":"complete","transcription":"Hello. World."}`,
		})(w, r)
	}))
	defer server.Close()

	c := New(server.URL, logger.NewNop())

	var seen []Event
	text, err := c.Transcribe(context.Background(), []byte("audio"), "a.mp3", "audio/mpeg", "secret", func(ev Event) {
		seen = append(seen, ev)
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello. World.", text)
	require.Len(t, seen, 7)
	assert.Equal(t, "processing", seen[0].Status)
	assert.Equal(t, "complete", seen[6].Status)
}

func TestTranscribeFallsBackWhenStreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/transcribe/stream":
			http.NotFound(w, r)
		case "/api/v1/transcribe":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"transcription": "fallback text",
				"success":       true,
			})
		}
	}))
	defer server.Close()

	c := New(server.URL, logger.NewNop())
	text, err := c.Transcribe(context.Background(), []byte("audio"), "a.mp3", "audio/mpeg", "", nil)

	require.NoError(t, err)
	assert.Equal(t, "fallback text", text)
}

func TestTranscribeFallsBackOnNonSSEContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/v1/transcribe" {
			json.NewEncoder(w).Encode(map[string]interface{}{"transcription": "plain", "success": true})
			return
		}
		// Streaming endpoint answers 200 but does not speak SSE
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	c := New(server.URL, logger.NewNop())
	text, err := c.Transcribe(context.Background(), []byte("audio"), "a.mp3", "audio/mpeg", "", nil)

	require.NoError(t, err)
	assert.Equal(t, "plain", text)
}

func TestStreamErrorDoesNotFallBack(t *testing.T) {
	fallbackCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/transcribe" {
			fallbackCalled = true
			return
		}
		sseHandler([]string{`{"status":"error","error":"OpenAI API key is not configured"}`})(w, r)
	}))
	defer server.Close()

	c := New(server.URL, logger.NewNop())
	_, err := c.Transcribe(context.Background(), []byte("audio"), "a.mp3", "audio/mpeg", "", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
	assert.False(t, fallbackCalled, "a job that failed on the stream must not be retried")
}

func TestSegmentErrorsAreNotTerminal(t *testing.T) {
	server := httptest.NewServer(sseHandler([]string{
		`{"status":"segmented","totalSegments":2}`,
		`{"status":"error","currentSegment":1,"error":"segment failed"}`,
		`{"status":"partial","currentSegment":2,"text":"Still here.","fullText":"Still here."}`,
		`{"status":"complete","transcription":"Still here."}`,
	}))
	defer server.Close()

	c := New(server.URL, logger.NewNop())
	text, err := c.TranscribeStream(context.Background(), []byte("audio"), "a.mp3", "audio/mpeg", "", nil)

	require.NoError(t, err)
	assert.Equal(t, "Still here.", text)
}

func TestSyncFallbackTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/transcribe/stream" {
			http.NotFound(w, r)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	c := New(server.URL, logger.NewNop())
	c.SetFallbackTimeout(50 * time.Millisecond)

	_, err := c.Transcribe(context.Background(), []byte("audio"), "a.mp3", "audio/mpeg", "", nil)
	assert.True(t, errors.Is(err, ErrTimeout), "expected ErrTimeout, got %v", err)
}

func TestSyncErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "invalid or expired OpenAI API key"})
	}))
	defer server.Close()

	c := New(server.URL, logger.NewNop())
	_, err := c.TranscribeSync(context.Background(), []byte("audio"), "a.mp3", "audio/mpeg", "bad-key")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid or expired")
}

func TestStreamEndsWithoutTerminalEvent(t *testing.T) {
	server := httptest.NewServer(sseHandler([]string{
		`{"status":"processing"}`,
	}))
	defer server.Close()

	c := New(server.URL, logger.NewNop())
	_, err := c.TranscribeStream(context.Background(), []byte("audio"), "a.mp3", "audio/mpeg", "", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a terminal event")
}

func TestStateApplyPreservesAbsentFields(t *testing.T) {
	var s State

	s.Apply(Event{Status: "segmented", TotalSegments: 3, Message: "split into 3"})
	assert.Equal(t, 3, s.TotalSegments)
	assert.True(t, s.InProgress)

	// A transcribing event without totals must not clobber them
	s.Apply(Event{Status: "transcribing", CurrentSegment: 1})
	assert.Equal(t, 3, s.TotalSegments)
	assert.Equal(t, 1, s.CurrentSegment)
	assert.Equal(t, "split into 3", s.Message)

	s.Apply(Event{Status: "partial", CurrentSegment: 1, Text: "One.", FullText: "One."})
	assert.Equal(t, "One.", s.Transcript)

	// Segment-scoped error keeps the job in progress
	s.Apply(Event{Status: "error", CurrentSegment: 2, Error: "segment 2 failed"})
	assert.True(t, s.InProgress)
	assert.Equal(t, "segment 2 failed", s.Err)

	s.Apply(Event{Status: "complete", Transcription: "One. Three."})
	assert.False(t, s.InProgress)
	assert.Equal(t, "One. Three.", s.Transcript)
}
