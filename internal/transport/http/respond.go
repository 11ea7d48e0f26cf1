package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"quizhub-service/internal/domain"
)

type errorPayload struct {
	Message string `json:"message"`
}

type resultPayload struct {
	domain.WriteResult
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Message: msg})
}

// writeResult maps a write outcome onto a status code. Partial results are
// still 200; the body carries the status so clients can tell them apart.
func writeResult(w http.ResponseWriter, res domain.WriteResult) {
	body := resultPayload{WriteResult: res}
	if res.Err != nil {
		body.Error = res.Err.Error()
	}

	status := http.StatusOK
	if !res.Succeeded() {
		switch {
		case isValidation(res.Err):
			status = http.StatusBadRequest
		case errors.Is(res.Err, domain.ErrQuizNotFound), errors.Is(res.Err, domain.ErrUserNotFound):
			status = http.StatusNotFound
		default:
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, body)
}

func isValidation(err error) bool {
	return errors.Is(err, domain.ErrEmptyTitle) ||
		errors.Is(err, domain.ErrInvalidQuestion) ||
		errors.Is(err, domain.ErrInvalidStatus)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
