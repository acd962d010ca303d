package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-reveal/core"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeRaw sends an already encoded JSON document unchanged.
func writeRaw(w http.ResponseWriter, statusCode int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status, body := core.ToErrorResponse(err)
	writeJSON(w, status, body)
}
