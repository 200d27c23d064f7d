package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"potholytics/internal/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RequestLogger logs method, path, status and duration of every request.
// Server errors go to the error log, client errors to the warning log.
func RequestLogger(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start).Round(time.Millisecond)
			switch {
			case rec.status >= 500:
				logger.Error("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
			case rec.status >= 400:
				logger.Warning("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
			default:
				logger.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
			}
		})
	}
}
