package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/AlejandroAndrade98/embipos/pkg/logger"
)

// writeError renders the same {error:{...}} envelope as pkg/httputil without
// importing it, so httputil stays free to depend on middleware helpers.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	body := map[string]string{"code": code, "message": message}
	if id := logger.CorrelationIDFromContext(r.Context()); id != "" {
		body["request_id"] = id
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": body})
}
