package api

import (
	"encoding/json"
	"net/http"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func statusFor(kind ftag.Kind) int {
	switch kind {
	case ftag.NotFound:
		return http.StatusNotFound
	case ftag.InvalidArgument:
		return http.StatusBadRequest
	case ftag.AlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps the error's kind to a status and writes the user-facing
// message with the internal chain as details.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(ftag.Get(err))
	msg := fmsg.GetIssue(err)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request error")
	}
	writeJSON(w, status, errorResponse{Error: msg, Details: err.Error()})
}

func badRequest(msg string) error {
	return fault.New(msg, ftag.With(ftag.InvalidArgument), fmsg.WithDesc("validate request", msg))
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fault.Wrap(err,
			fmsg.WithDesc("decode body", "Invalid JSON body"),
			ftag.With(ftag.InvalidArgument))
	}
	return nil
}
