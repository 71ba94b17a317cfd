package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/iudanet/opsync/pkg/api"
)

// writeError пишет ошибку в том же формате, что и обработчики API
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Success: false, Error: msg})
}
