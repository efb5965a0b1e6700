package types

import (
	"errors"

	appErr "github.com/oncall-agent/engine/pkg/errors"
)

// FromAppError converts an internal error into its API shape. Wrapped causes
// are never exposed to callers.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var ae *appErr.AppError
	if errors.As(err, &ae) {
		return &APIError{Code: string(ae.Code), Message: ae.Message}
	}
	return &APIError{Code: string(appErr.CodeUnknown), Message: err.Error()}
}
