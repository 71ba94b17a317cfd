package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/opsync/pkg/api"
)

// writeJSON сериализует ответ и пишет его с заданным статусом
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError пишет ответ с ошибкой в формате {success:false, error, message}
func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg, details string) {
	writeJSON(w, logger, status, api.ErrorResponse{
		Success: false,
		Error:   msg,
		Message: details,
	})
}
