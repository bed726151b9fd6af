package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// internalErrorBody is sent when a handler panics before writing a response.
const internalErrorBody = "Internal server error"

// RecoveryMiddleware recovers from panics in HTTP handlers. The panic and
// its stack are logged; the client gets a plain text 500 unless the handler
// had already started the response, in which case the connection is left to
// close. http.ErrAbortHandler is re-raised.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := newResponseWriter(w)

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			if rw.written {
				return
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(internalErrorBody))
		}()

		next.ServeHTTP(rw, r)
	})
}
