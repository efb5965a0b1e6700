package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/oncall-agent/engine/internal/api/types"
	"github.com/oncall-agent/engine/pkg/logger"
	"go.uber.org/zap"
)

// Recovery logs panics and returns a generic 500 envelope. Stack traces stay
// in the logs, never in the response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.L().Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(types.APIResponse{
					Success: false,
					Error:   &types.APIError{Code: "internal", Message: "internal server error"},
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
