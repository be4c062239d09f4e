package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"reconciler/internal/logger"
	"reconciler/internal/model"
	"reconciler/internal/retry"
)

// httpLog is resolved per call so it follows logger.Setup.
func httpLog() *zerolog.Logger {
	l := logger.WithComponent("http")
	return &l
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		switch {
		case errors.Is(err, model.ErrDuplicateID):
			return http.StatusConflict
		case errors.Is(err, model.ErrUnknownReference):
			return http.StatusNotFound
		default:
			return http.StatusUnprocessableEntity
		}
	case errors.Is(err, retry.ErrExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	resp := errorResponse{Error: err.Error()}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}

	var ev *zerolog.Event
	switch {
	case status >= http.StatusInternalServerError:
		ev = httpLog().Error()
		if status == http.StatusInternalServerError {
			resp.Error = "internal error"
		} else {
			resp.Error = "store unavailable, retry later"
		}
	default:
		ev = httpLog().Info()
	}
	ev.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("request failed")

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		httpLog().Error().Err(err).Msg("encode response")
	}
}
