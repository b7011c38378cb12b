// Package api serves the countsheet HTTP API.
package api

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/countsheet/internal/audio"
	"github.com/satindergrewal/countsheet/internal/rehearsal"
	"github.com/satindergrewal/countsheet/internal/store"
	"github.com/satindergrewal/countsheet/internal/suggest"
)

// Options wires the server to its collaborators. Rehearsal, Stream and Offer
// are optional; their routes answer 503 when unset.
type Options struct {
	Store          *store.Store
	Rehearsal      *rehearsal.Session
	Suggester      *suggest.Suggester
	UploadDir      string
	MaxUploadBytes int64
	DefaultBPM     float64
	Stream         http.Handler // chunked MP3
	Offer          http.Handler // WebRTC SDP
}

// Server holds the HTTP handlers.
type Server struct {
	store      *store.Store
	rehearsal  *rehearsal.Session
	suggester  *suggest.Suggester
	uploadDir  string
	maxUpload  int64
	defaultBPM float64
	stream     http.Handler
	offer      http.Handler

	analyze func(path string) (*audio.Analysis, error)
}

// New creates a server.
func New(opts Options) *Server {
	s := &Server{
		store:      opts.Store,
		rehearsal:  opts.Rehearsal,
		suggester:  opts.Suggester,
		uploadDir:  opts.UploadDir,
		maxUpload:  opts.MaxUploadBytes,
		defaultBPM: opts.DefaultBPM,
		stream:     opts.Stream,
		offer:      opts.Offer,
		analyze:    audio.Analyze,
	}
	if s.suggester == nil {
		s.suggester = suggest.NewSuggester(nil)
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 100 << 20
	}
	if s.defaultBPM <= 0 {
		s.defaultBPM = 120
	}
	if s.uploadDir == "" {
		s.uploadDir = "uploads"
	}
	return s
}

// Routes returns the HTTP handler with CORS and request logging applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/performances", s.handleListPerformances)
	mux.HandleFunc("POST /api/performances", s.handleCreatePerformance)
	mux.HandleFunc("GET /api/performances/{id}", s.handleGetPerformance)
	mux.HandleFunc("PATCH /api/performances/{id}", s.handlePatchPerformance)
	mux.HandleFunc("DELETE /api/performances/{id}", s.handleDeletePerformance)
	mux.HandleFunc("PATCH /api/notes/{noteId}", s.handlePatchNote)

	mux.HandleFunc("POST /api/performances/{id}/track", s.handleUploadTrack)
	mux.HandleFunc("GET /api/performances/{id}/audio", s.handleServeAudio)
	mux.HandleFunc("GET /api/performances/{id}/nearest", s.handleNearest)
	mux.HandleFunc("GET /api/performances/{id}/suggestions", s.handleSuggestions)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)

	mux.HandleFunc("GET /api/export/{id}/csv", s.handleExportCSV)
	mux.HandleFunc("GET /api/export/{id}/json", s.handleExportJSON)
	mux.HandleFunc("GET /api/export/{id}/midi", s.handleExportMIDI)

	mux.HandleFunc("POST /api/rehearsal", s.handleStartRehearsal)
	mux.HandleFunc("DELETE /api/rehearsal", s.handleStopRehearsal)
	mux.HandleFunc("GET /api/rehearsal", s.handleRehearsalStatus)

	mux.Handle("GET /stream", optional(s.stream, "streaming"))
	mux.Handle("POST /offer", optional(s.offer, "WebRTC"))

	return corsMiddleware(logRequests(mux))
}

func optional(h http.Handler, what string) http.Handler {
	if h != nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, what+" not enabled", http.StatusServiceUnavailable)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging. It passes
// flushes through so streaming handlers keep working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).Round(time.Microsecond),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request failed")
		} else {
			entry.Debug("request")
		}
	})
}
