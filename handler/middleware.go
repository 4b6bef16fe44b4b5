package handler

import (
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
)

const correlationHeader = "X-Correlation-Id"

// Correlation echoes the caller's X-Correlation-Id, or the chi request ID
// when none was sent.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(correlationHeader))
		if id == "" {
			id = chimw.GetReqID(r.Context())
			r.Header.Set(correlationHeader, id)
		}
		w.Header().Set(correlationHeader, id)
		next.ServeHTTP(w, r)
	})
}

func correlationID(r *http.Request) string {
	return r.Header.Get(correlationHeader)
}

// CORS returns middleware that handles CORS headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-Id")
				w.Header().Set("Access-Control-Expose-Headers", "X-Correlation-Id, Content-Disposition")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
