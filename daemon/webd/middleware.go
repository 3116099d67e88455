package webd

import (
	"io"
	"net"
	"net/http"
	"os"

	ghandlers "github.com/gorilla/handlers"
)

// tokenAuthenticationMiddleware guards routes that change models or training.
// With no CATMODE_TOKEN set, it allows all requests.
// Otherwise the token is read from the X-Catmode-Token header or the api_token query param.
func tokenAuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		validToken := os.Getenv("CATMODE_TOKEN")
		if validToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get("X-Catmode-Token")
		if token == "" {
			token = r.URL.Query().Get("api_token")
		}
		if token != validToken {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func permissiveCorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, X-Catmode-Token")
		next.ServeHTTP(w, r)
	})
}

func contentTypeMiddlewareFunc(contentType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs one structured line per request once it is served.
func (s *WebDaemon) loggingMiddleware(next http.Handler) http.Handler {
	return ghandlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p ghandlers.LogFormatterParams) {
		host, _, err := net.SplitHostPort(p.Request.RemoteAddr)
		if err != nil {
			host = p.Request.RemoteAddr
		}
		s.logger.Debug("HTTP", "remote", host, "method", p.Request.Method,
			"uri", p.URL.RequestURI(), "status", p.StatusCode, "size", p.Size)
	})
}
