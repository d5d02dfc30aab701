package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkorzh/audioscribe/pkg/logger"
)

// StaticFileHandler serves the web UI files from a directory, falling back
// to index.html for the root path
type StaticFileHandler struct {
	dir        string
	fileServer http.Handler
	logger     *logger.Logger
}

// NewStaticFileHandler creates a new static file handler
func NewStaticFileHandler(dir string, logger *logger.Logger) *StaticFileHandler {
	return &StaticFileHandler{
		dir:        dir,
		fileServer: http.FileServer(http.Dir(dir)),
		logger:     logger.Named("static"),
	}
}

// ServeHTTP implements the http.Handler interface
func (h *StaticFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Reject path traversal outright
	if strings.Contains(r.URL.Path, "..") {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.dir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		index := filepath.Join(h.dir, "index.html")
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}
		http.NotFound(w, r)
		return
	}

	h.fileServer.ServeHTTP(w, r)
}
