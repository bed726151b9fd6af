package auth

import (
	"log/slog"
	"net/http"
)

// Realm is announced in the WWW-Authenticate challenge.
const Realm = "Login Required"

const unauthorizedMessage = "Could not verify your access level for that URL.\n" +
	"You have to login with proper credentials"

// BasicAuthMiddleware protects the admin API with HTTP basic auth. The
// username is ignored; the password must be a trusted user key.
type BasicAuthMiddleware struct {
	validator *UserKeyValidator
	logger    *slog.Logger
}

// NewBasicAuthMiddleware creates the admin authentication middleware.
func NewBasicAuthMiddleware(validator *UserKeyValidator) *BasicAuthMiddleware {
	return &BasicAuthMiddleware{
		validator: validator,
		logger:    slog.Default().With("component", "auth"),
	}
}

// Handle wraps an HTTP handler with basic authentication.
func (m *BasicAuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, password, ok := r.BasicAuth()
		if !ok || !m.validator.IsTrusted(password) {
			m.logger.WarnContext(r.Context(), "admin authentication failed",
				"credentials_present", ok,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			Challenge(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Challenge writes a 401 response asking for basic credentials.
func Challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`"`)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedMessage))
}
