package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
	"github.com/nerrad567/gray-logic-airpurifier/internal/bridges/miio"
)

// Error is the JSON body of every error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeNotFound          = "not_found"
	ErrCodeUnauthorized      = "unauthorised"
	ErrCodeInternal          = "internal_error"
	ErrCodeInvalidValue      = "invalid_value"
	ErrCodeReadOnly          = "read_only"
	ErrCodeMethodNotAllow    = "method_not_allowed"
	ErrCodeUnavailable       = "unavailable"
	ErrCodeDeviceUnreachable = "device_unreachable"
	ErrCodeDeviceRejected    = "device_rejected"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write; the client may have gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="airpurifier"`)
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeCharacteristicError maps a Get/Set failure to a response. Device
// failures are 502 since the service itself worked.
func writeCharacteristicError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accessory.ErrNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, accessory.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidValue, err.Error())
	case errors.Is(err, accessory.ErrReadOnly):
		writeError(w, http.StatusBadRequest, ErrCodeReadOnly, err.Error())
	case miio.IsRejection(err), errors.Is(err, miio.ErrUnexpectedValue):
		writeError(w, http.StatusBadGateway, ErrCodeDeviceRejected, err.Error())
	default:
		writeError(w, http.StatusBadGateway, ErrCodeDeviceUnreachable, err.Error())
	}
}
