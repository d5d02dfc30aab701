package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mkorzh/audioscribe/internal/audio"
	"github.com/mkorzh/audioscribe/internal/config"
	"github.com/mkorzh/audioscribe/internal/transcription"
	"github.com/mkorzh/audioscribe/pkg/logger"
)

// Memory ceiling for multipart parsing; larger parts spill to disk
const multipartMemoryLimit = 32 << 20

// Handler contains the HTTP handlers for the transcription endpoints
type Handler struct {
	orchestrator *transcription.Orchestrator
	transcriber  transcription.Transcriber
	fetcher      *audio.FetchClient
	config       *config.Config
	logger       *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	orchestrator *transcription.Orchestrator,
	transcriber transcription.Transcriber,
	fetcher *audio.FetchClient,
	config *config.Config,
	logger *logger.Logger,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		transcriber:  transcriber,
		fetcher:      fetcher,
		config:       config,
		logger:       logger.Named("api-handler"),
	}
}

// transcribeRequest is the decoded multipart submission
type transcribeRequest struct {
	upload audio.Upload
	apiKey string
}

// readRequest decodes the multipart form. The upload comes from the `file`
// part or, if absent, from fetching the `url` field.
func (h *Handler) readRequest(r *http.Request) (transcribeRequest, error) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		return transcribeRequest{}, fmt.Errorf("error parsing form data: %w", err)
	}

	req := transcribeRequest{apiKey: r.FormValue("apiKey")}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return transcribeRequest{}, fmt.Errorf("error reading uploaded file: %w", err)
		}
		req.upload = audio.Upload{
			Data:     data,
			Filename: header.Filename,
			MIMEType: header.Header.Get("Content-Type"),
		}
		return req, nil
	}

	if rawURL := r.FormValue("url"); rawURL != "" {
		upload, err := h.fetcher.Fetch(r.Context(), rawURL)
		if err != nil {
			return transcribeRequest{}, err
		}
		req.upload = upload
		return req, nil
	}

	// No file part and no url field; the caller gets a validation error
	return req, nil
}

// Transcribe handles POST /api/v1/transcribe, the synchronous variant.
// The whole payload goes to the provider in one request, no segmentation.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxUploadBytes())

	req, err := h.readRequest(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusBadRequest,
				fmt.Sprintf("File exceeds the maximum size of %d MB", h.config.Server.MaxUploadMB), "")
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	if len(req.upload.Data) == 0 {
		h.writeError(w, http.StatusBadRequest, "No file uploaded", "")
		return
	}
	if !strings.HasPrefix(req.upload.MIMEType, "audio/") {
		h.writeError(w, http.StatusBadRequest, "Uploaded file is not an audio file", "")
		return
	}

	apiKey, err := h.orchestrator.ResolveKey(req.apiKey)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	text, err := h.transcriber.Transcribe(r.Context(), apiKey, audio.Segment{
		Data:     req.upload.Data,
		Filename: req.upload.Filename,
		MIMEType: req.upload.MIMEType,
		Ordinal:  1,
	})
	if err != nil {
		h.logger.Warn("Synchronous transcription failed",
			logger.String("filename", req.upload.Filename),
			logger.Error(err))

		var authErr *transcription.AuthError
		var provErr *transcription.ProviderError
		switch {
		case errors.As(err, &authErr):
			h.writeError(w, http.StatusUnauthorized, authErr.Error(), "")
		case errors.As(err, &provErr):
			h.writeError(w, http.StatusInternalServerError, "Transcription service error", provErr.Body)
		default:
			h.writeError(w, http.StatusInternalServerError, "Transcription failed", err.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transcription": text,
		"success":       true,
	})
}

// TranscribeStream handles POST /api/v1/transcribe/stream. It responds
// with an SSE stream of progress events; validation failures arrive as
// error events on the stream, not as HTTP statuses.
func (h *Handler) TranscribeStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Streaming is not supported", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	req, err := h.readRequest(r)
	if err != nil {
		h.writeEvent(w, flusher, transcription.StreamEvent{Status: transcription.StatusError, Error: err.Error()})
		return
	}

	events := h.orchestrator.Run(r.Context(), req.upload, req.apiKey)
	for ev := range events {
		h.writeEvent(w, flusher, ev)
	}
}

// writeEvent writes one SSE record and flushes it to the client
func (h *Handler) writeEvent(w http.ResponseWriter, flusher http.Flusher, ev transcription.StreamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to marshal stream event", logger.Error(err))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

// writeJSON writes a JSON response with the given status code
func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode JSON response", logger.Error(err))
	}
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]interface{}{"error": message}
	if details != "" {
		body["details"] = details
	}
	h.writeJSON(w, status, body)
}
