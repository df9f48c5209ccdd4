package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hirewire/interview-gateway/pkg/interview"
)

type errorEnvelope struct {
	Error *interview.Error `json:"error"`
}

func statusForError(err *interview.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.Type {
	case interview.ErrInvalidRequest, interview.ErrInvalidState:
		return http.StatusBadRequest
	case interview.ErrSessionNotFound, interview.ErrNotFound:
		return http.StatusNotFound
	case interview.ErrAuthentication:
		return http.StatusUnauthorized
	case interview.ErrExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	de := interview.AsError(err)
	writeJSON(w, statusForError(de), errorEnvelope{Error: de})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return interview.NewInvalidRequestError("invalid json body")
	}
	return nil
}
