package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBasicAuthMiddleware_Handle(t *testing.T) {
	validator := NewUserKeyValidator([]string{"admin-secret"})
	middleware := NewBasicAuthMiddleware(validator)

	tests := []struct {
		name           string
		setupRequest   func(*http.Request)
		expectedStatus int
	}{
		{
			name: "trusted password",
			setupRequest: func(r *http.Request) {
				r.SetBasicAuth("anyone", "admin-secret")
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "username is ignored",
			setupRequest: func(r *http.Request) {
				r.SetBasicAuth("", "admin-secret")
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing credentials",
			setupRequest:   func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong password",
			setupRequest: func(r *http.Request) {
				r.SetBasicAuth("admin", "guess")
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "bearer token is not basic auth",
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer admin-secret")
			},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := middleware.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
			tt.setupRequest(req)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if called != (tt.expectedStatus == http.StatusOK) {
				t.Errorf("next handler called = %v", called)
			}
			if tt.expectedStatus == http.StatusUnauthorized {
				if got := w.Header().Get("WWW-Authenticate"); got != `Basic realm="Login Required"` {
					t.Errorf("Unexpected challenge header %q", got)
				}
				if !strings.Contains(w.Body.String(), "proper credentials") {
					t.Errorf("Unexpected body %q", w.Body.String())
				}
			}
		})
	}
}
