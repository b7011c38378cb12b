package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/countsheet/internal/grid"
	"github.com/satindergrewal/countsheet/internal/store"
	"github.com/satindergrewal/countsheet/internal/suggest"
	"github.com/satindergrewal/countsheet/internal/tempo"
)

// formFile parses the multipart body and returns the "file" part.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, nil, fault.Wrap(err,
			fmsg.WithDesc("parse form", "Upload must be multipart form data within the size limit"),
			ftag.With(ftag.InvalidArgument))
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fault.Wrap(err,
			fmsg.WithDesc("form file", "A file field is required"),
			ftag.With(ftag.InvalidArgument))
	}
	return f, fh, nil
}

// saveUpload copies src to path.
func saveUpload(src io.Reader, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fault.Wrap(err, fmsg.With("create upload"))
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(path)
		return fault.Wrap(err, fmsg.With("write upload"))
	}
	return out.Close()
}

// uploadExt returns the sanitized extension of an uploaded file name.
func uploadExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\ `) {
		return ""
	}
	return ext
}

func (s *Server) handleUploadTrack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, err := s.store.GetPerformance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	src, fh, err := s.formFile(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer src.Close()

	bpm, err := parseFormFloat(r.FormValue("bpm"), "bpm")
	if err != nil {
		writeError(w, err)
		return
	}
	if bpm != nil {
		if err := validateBPM(*bpm); err != nil {
			writeError(w, err)
			return
		}
	}
	offset, err := parseFormFloat(r.FormValue("offsetSec"), "offsetSec")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		writeError(w, fault.Wrap(err, fmsg.With("create upload dir")))
		return
	}
	path := filepath.Join(s.uploadDir, id+"-"+uuid.NewString()+uploadExt(fh.Filename))
	if err := saveUpload(src, path); err != nil {
		writeError(w, err)
		return
	}

	analysis, err := s.analyze(path)
	if err != nil {
		os.Remove(path)
		writeError(w, err)
		return
	}
	if analysis.DurationSec <= 0 {
		os.Remove(path)
		writeError(w, badRequest("audio file has no samples"))
		return
	}

	in := store.TrackInput{
		FileName:    filepath.Base(fh.Filename),
		AudioPath:   path,
		DurationSec: analysis.DurationSec,
		BPM:         s.defaultBPM,
	}
	if analysis.BPM > 0 {
		in.BPM = tempo.Clamp(float64(analysis.BPM))
	}
	if bpm != nil {
		in.BPM = *bpm
	}
	if offset != nil {
		in.OffsetSec = *offset
	}

	p, err := s.store.ReplaceTrack(r.Context(), id, in)
	if err != nil {
		os.Remove(path)
		writeError(w, err)
		return
	}
	if existing.Track.HasAudio() && existing.Track.AudioPath != path {
		os.Remove(existing.Track.AudioPath)
	}
	s.refreshRehearsal(r.Context(), id)

	log.WithFields(log.Fields{
		"performance": id,
		"file":        in.FileName,
		"bpm":         in.BPM,
		"estimated":   analysis.BPM,
		"duration":    grid.FormatDuration(in.DurationSec),
	}).Info("track uploaded")
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleServeAudio(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPerformance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !p.Track.HasAudio() {
		writeError(w, fault.New("no audio", ftag.With(ftag.NotFound), fmsg.WithDesc("serve audio", "Audio not found")))
		return
	}
	http.ServeFile(w, r, p.Track.AudioPath)
}

type nearestResponse struct {
	Index int        `json:"index"`
	Cell  *grid.Cell `json:"cell"`
	Text  string     `json:"text"`
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	if err != nil || !finite(t) {
		writeError(w, badRequest("t must be a number of seconds"))
		return
	}
	p, err := s.store.GetPerformance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	notes := store.Notes(p.CountNotes)
	cells := make([]grid.Cell, len(notes))
	for i, n := range notes {
		cells[i] = n.Cell
	}

	resp := nearestResponse{Index: grid.NearestCountAt(t, cells)}
	if resp.Index >= 0 {
		resp.Cell = &cells[resp.Index]
		resp.Text = notes[resp.Index].Text
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	src, fh, err := s.formFile(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "countsheet-*"+uploadExt(fh.Filename))
	if err != nil {
		writeError(w, fault.Wrap(err, fmsg.With("create temp file")))
		return
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := saveUpload(src, path); err != nil {
		writeError(w, err)
		return
	}
	analysis, err := s.analyze(path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	measure, err := strconv.Atoi(r.URL.Query().Get("measure"))
	if err != nil || measure < 1 {
		writeError(w, badRequest("measure must be a measure number starting at 1"))
		return
	}
	p, err := s.store.GetPerformance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if p.Track == nil {
		writeError(w, fault.New("no track", ftag.With(ftag.NotFound), fmsg.WithDesc("suggestions", "Track not found")))
		return
	}
	measures, _ := grid.CountsFor(p.Track.DurationSec, p.Track.BPM)
	if measure > measures {
		writeError(w, badRequest("measure is past the end of the track"))
		return
	}

	idx := measure - 1
	var notes []grid.Note
	for _, n := range store.Notes(p.CountNotes) {
		if n.MeasureIndex == idx {
			notes = append(notes, n)
		}
	}

	suggestions := s.suggester.Suggest(r.Context(), suggest.Request{
		PerformanceID: p.ID,
		Name:          p.Name,
		BPM:           p.Track.BPM,
		MeasureIndex:  idx,
		Notes:         notes,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"measure":     measure,
		"suggestions": suggestions,
	})
}
