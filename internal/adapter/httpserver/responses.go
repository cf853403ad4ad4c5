// Package httpserver contains HTTP handlers and middleware for the
// moderation pipeline's synchronous read/write surface.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blausher/modsvc/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		code = http.StatusBadRequest
		codeStr = "INVALID_INPUT"
	case errors.Is(err, domain.ErrSellerNotFound):
		code = http.StatusNotFound
		codeStr = "SELLER_NOT_FOUND"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrAlreadyExists):
		code = http.StatusConflict
		codeStr = "ALREADY_EXISTS"
	case errors.Is(err, domain.ErrStorageUnavailable):
		code = http.StatusServiceUnavailable
		codeStr = "STORAGE_UNAVAILABLE"
	case errors.Is(err, domain.ErrBusUnavailable):
		code = http.StatusServiceUnavailable
		codeStr = "BUS_UNAVAILABLE"
	case errors.Is(err, domain.ErrScorerNotLoaded):
		code = http.StatusServiceUnavailable
		codeStr = "SCORER_NOT_LOADED"
	case errors.Is(err, domain.ErrScorerFailed):
		code = http.StatusServiceUnavailable
		codeStr = "SCORER_FAILED"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
