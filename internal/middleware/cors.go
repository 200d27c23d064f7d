package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows every origin, method and header, like the dashboard expects.
func CORS(next http.Handler) http.Handler {
	return cors.AllowAll().Handler(next)
}
