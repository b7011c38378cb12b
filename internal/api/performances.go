package api

import (
	"context"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
)

func (s *Server) handleListPerformances(w http.ResponseWriter, r *http.Request) {
	perfs, err := s.store.ListPerformances(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perfs)
}

// createRequest is either a simple create ({name, team, eventDate}) or a
// batch save ({performance, track, notes}).
type createRequest struct {
	performanceBody
	Performance *performanceBody `json:"performance"`
	Track       *trackBody       `json:"track"`
	Notes       []noteBody       `json:"notes"`
}

func (s *Server) handleCreatePerformance(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.Performance != nil || req.Track != nil {
		s.saveBatch(w, r, req)
		return
	}

	in, err := newPerformanceInput(req.performanceBody)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.store.CreatePerformance(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) saveBatch(w http.ResponseWriter, r *http.Request, req createRequest) {
	if req.Performance == nil || req.Track == nil {
		writeError(w, badRequest("batch save needs both performance and track"))
		return
	}
	pb := *req.Performance
	if req.Track.PerformanceID != "" {
		pb.ID = req.Track.PerformanceID
	}
	in, err := newPerformanceInput(pb)
	if err != nil {
		writeError(w, err)
		return
	}
	tb := *req.Track
	if tb.BPM == 0 {
		tb.BPM = s.defaultBPM
	}
	track, err := newTrackInput(tb)
	if err != nil {
		writeError(w, err)
		return
	}
	notes, err := newNotes(req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := s.store.SaveWithTrack(r.Context(), in, track, notes)
	if err != nil {
		writeError(w, err)
		return
	}
	s.refreshRehearsal(r.Context(), p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPerformance(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPerformance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// patchRequest covers the three PATCH shapes: a note edit, a grid rebuild,
// or a metadata update.
type patchRequest struct {
	performanceBody
	NoteID    *string  `json:"noteId"`
	Text      *string  `json:"text"`
	BPM       *float64 `json:"bpm"`
	OffsetSec *float64 `json:"offsetSec"`
}

func (s *Server) handlePatchPerformance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req patchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	switch {
	case req.NoteID != nil:
		if req.Text == nil {
			writeError(w, badRequest("text is required"))
			return
		}
		note, err := s.store.UpdateNoteText(r.Context(), id, *req.NoteID, *req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		s.refreshRehearsal(r.Context(), id)
		writeJSON(w, http.StatusOK, note)

	case req.BPM != nil || req.OffsetSec != nil:
		if req.BPM != nil {
			if err := validateBPM(*req.BPM); err != nil {
				writeError(w, err)
				return
			}
		}
		if req.OffsetSec != nil {
			if err := validateOffset(*req.OffsetSec); err != nil {
				writeError(w, err)
				return
			}
		}
		p, err := s.store.RebuildGrid(r.Context(), id, req.BPM, req.OffsetSec)
		if err != nil {
			writeError(w, err)
			return
		}
		s.refreshRehearsal(r.Context(), id)
		writeJSON(w, http.StatusOK, p)

	default:
		u, err := newPerformanceUpdate(req.performanceBody)
		if err != nil {
			writeError(w, err)
			return
		}
		p, err := s.store.UpdatePerformance(r.Context(), id, u)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) handlePatchNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text *string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Text == nil {
		writeError(w, badRequest("text is required"))
		return
	}
	note, err := s.store.UpdateNoteText(r.Context(), "", r.PathValue("noteId"), *req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	s.refreshRehearsal(r.Context(), note.PerformanceID)
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeletePerformance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := s.store.GetPerformance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.DeletePerformance(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if p.Track.HasAudio() {
		if err := os.Remove(p.Track.AudioPath); err != nil && !os.IsNotExist(err) {
			log.Printf("remove upload %s: %v", p.Track.AudioPath, err)
		}
	}
	if s.rehearsal != nil {
		s.rehearsal.Forget(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) refreshRehearsal(ctx context.Context, id string) {
	if s.rehearsal == nil {
		return
	}
	if err := s.rehearsal.Refresh(ctx, id); err != nil {
		log.Printf("rehearsal refresh %s: %v", id, err)
	}
}
