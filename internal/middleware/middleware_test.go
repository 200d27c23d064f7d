package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"potholytics/internal/logger"

	"github.com/stretchr/testify/require"
)

func TestCORS_AllowsAnyOrigin(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/detect-potholes", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger_RecordsClientErrors(t *testing.T) {
	dir := t.TempDir()
	l, err := logger.New(dir, slog.LevelDebug)
	require.NoError(t, err)
	defer l.Close()

	h := RequestLogger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get_image", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	data, err := os.ReadFile(filepath.Join(dir, "warning.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "GET /get_image -> 400")
}
