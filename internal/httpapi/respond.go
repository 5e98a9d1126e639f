package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentic-research/wfsproxy-manager/internal/catalog"
	"github.com/agentic-research/wfsproxy-manager/internal/client"
	"github.com/agentic-research/wfsproxy-manager/internal/mappingedit"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
)

const maxRequestBody = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("write response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	h.writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message, Details: details}})
}

// writeFailure maps err onto the error envelope.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		var details map[string]any
		if len(apiErr.Details) > 0 {
			details = map[string]any{"details": apiErr.Details}
		}
		msg := apiErr.Message
		if msg == "" {
			msg = err.Error()
		}
		h.writeError(w, statusForKind(apiErr.Kind), string(apiErr.Kind), msg, details)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNoSelection):
		h.writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, mappingedit.ErrUnknownField),
		errors.Is(err, mappingedit.ErrInvalidValue),
		errors.Is(err, mappingedit.ErrReadOnly),
		errors.Is(err, catalog.ErrURLTooShort):
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
	default:
		h.log.Error().Err(err).Msg("request failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
	}
}

func statusForKind(k client.Kind) int {
	switch k {
	case client.KindValidation:
		return http.StatusBadRequest
	case client.KindNotFound:
		return http.StatusNotFound
	case client.KindConflict:
		return http.StatusConflict
	case client.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON request body into v, writing the error response itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON", map[string]any{"error": err.Error()})
		return false
	}
	return true
}
