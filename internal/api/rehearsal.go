package api

import (
	"net/http"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
)

func (s *Server) rehearsalEnabled(w http.ResponseWriter) bool {
	if s.rehearsal == nil {
		http.Error(w, "rehearsal player not enabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) handleStartRehearsal(w http.ResponseWriter, r *http.Request) {
	if !s.rehearsalEnabled(w) {
		return
	}
	var req struct {
		PerformanceID string  `json:"performanceId"`
		FromSec       float64 `json:"fromSec"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PerformanceID == "" {
		writeError(w, badRequest("performanceId is required"))
		return
	}

	st, err := s.rehearsal.Start(r.Context(), req.PerformanceID, req.FromSec)
	if err != nil {
		writeError(w, fault.Wrap(err, fmsg.With("start rehearsal")))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStopRehearsal(w http.ResponseWriter, r *http.Request) {
	if !s.rehearsalEnabled(w) {
		return
	}
	s.rehearsal.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRehearsalStatus(w http.ResponseWriter, r *http.Request) {
	if !s.rehearsalEnabled(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.rehearsal.Status())
}
