package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"potholytics/internal/dto"
	"potholytics/internal/logger"
)

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// boolDefault parses "true"/"false"/"1"/"0" and friends, falling back to def.
func boolDefault(s string, def bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, logger *logger.Logger, status int, message string) {
	writeJSON(w, logger, status, dto.ErrorResponse{Error: message})
}

// requestIDFromURL reads a caller-chosen request id that is available
// before the body has been read.
func requestIDFromURL(r *http.Request) string {
	if id := r.URL.Query().Get("request_id"); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}
