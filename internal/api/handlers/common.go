package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oncall-agent/engine/internal/api/types"
	appErr "github.com/oncall-agent/engine/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), types.APIResponse{Success: false, Error: types.FromAppError(err)})
}

func writeErrorStr(w http.ResponseWriter, status int, msg string) {
	code := appErr.CodeInvalid
	switch {
	case status == http.StatusNotFound:
		code = appErr.CodeNotFound
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		code = appErr.CodeUnavailable
	case status >= 500:
		code = appErr.CodeInternal
	}
	writeJSON(w, status, types.APIResponse{Success: false, Error: &types.APIError{Code: string(code), Message: msg}})
}

// httpStatus maps internal error codes to HTTP statuses.
func httpStatus(err error) int {
	var ae *appErr.AppError
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Code {
	case appErr.CodeNotFound:
		return http.StatusNotFound
	case appErr.CodeInvalid:
		return http.StatusBadRequest
	case appErr.CodeConflict:
		return http.StatusConflict
	case appErr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
