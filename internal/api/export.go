package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/countsheet/internal/export"
	"github.com/satindergrewal/countsheet/internal/store"
)

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPerformance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	attachment(w, "text/csv", export.FileName(p.Name, "csv"))
	if err := export.WriteCSV(w, store.Notes(p.CountNotes)); err != nil {
		log.WithField("performance", p.ID).Printf("write csv export: %v", err)
	}
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPerformance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := export.JSON(p)
	if err != nil {
		writeError(w, fault.Wrap(err, fmsg.With("encode export")))
		return
	}
	attachment(w, "application/json", export.FileName(p.Name, "json"))
	w.Write(data)
}

func (s *Server) handleExportMIDI(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPerformance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if p.Track == nil {
		writeError(w, fault.New("no track", ftag.With(ftag.NotFound), fmsg.WithDesc("export midi", "Track not found")))
		return
	}

	// render first so a failure can still produce a JSON error
	var buf bytes.Buffer
	if err := export.MIDI(&buf, p.Track.BPM, p.Track.Cells()); err != nil {
		writeError(w, fault.Wrap(err, fmsg.With("render midi")))
		return
	}
	attachment(w, "audio/midi", export.FileName(p.Name, "mid"))
	w.Write(buf.Bytes())
}
