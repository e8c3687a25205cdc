package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSMiddleware returns a CORS handler for the read-only API. An empty
// origin list or a "*" entry allows every origin.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		ExposedHeaders: []string{"ETag", "Retry-After"},
		MaxAge:         300,
	})
	return c.Handler
}
