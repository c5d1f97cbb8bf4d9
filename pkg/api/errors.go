package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
)

// codeInvalidRequest is reported for malformed or invalid request bodies
const codeInvalidRequest = "INVALID_REQUEST"

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Retryable bool              `json:"retryable"`
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindCapacityExceeded, apperr.KindConcurrencyConflict:
		return http.StatusConflict
	case apperr.KindConfig:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	body := ErrorResponse{
		Code:      string(kind),
		Message:   err.Error(),
		Retryable: apperr.IsRetryable(err),
	}

	var e *apperr.Error
	if errors.As(err, &e) {
		body.Message = e.Message
		body.Details = map[string]string{}
		if e.OfferID != "" {
			body.Details["offer_id"] = e.OfferID
		}
		if e.ResponseID != "" {
			body.Details["response_id"] = e.ResponseID
		}
		if e.Err != nil {
			body.Details["cause"] = e.Err.Error()
		}
	}

	status := StatusFor(kind)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
		body.Message = "internal error"
	}
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: codeInvalidRequest, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
