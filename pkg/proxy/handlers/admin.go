package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mercator-hq/rotor/pkg/credentials"
	"mercator-hq/rotor/pkg/telemetry/logging"
)

// maxAdminBody bounds admin request bodies.
const maxAdminBody = 64 * 1024

// ActionResponse is the body of every admin mutation.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// KeyView is one row of the admin listing.
type KeyView struct {
	Key                    string `json:"key"`
	AddedAt                string `json:"added_at"`
	SuccessfulRequests     int64  `json:"successful_requests"`
	ErrorRequests          int64  `json:"error_requests"`
	ErrorsSinceLastSuccess int64  `json:"errors_since_last_success"`
	FirstErrorAt           string `json:"first_error_at"`
	ErrorCounterStartedAt  string `json:"error_counter_started_at"`
	Removed                bool   `json:"removed"`
}

// KeyListResponse is the body of GET /admin/keys.
type KeyListResponse struct {
	SortBy    string    `json:"sort_by"`
	SortOrder string    `json:"sort_order"`
	Keys      []KeyView `json:"keys"`
}

// AdminHandler serves the credential administration API. Authentication is
// applied by the router.
type AdminHandler struct {
	store  credentials.Store
	logger *slog.Logger
}

// NewAdminHandler creates the admin API handler.
func NewAdminHandler(store credentials.Store) *AdminHandler {
	return &AdminHandler{
		store:  store,
		logger: slog.Default().With("component", "admin"),
	}
}

// ListKeys handles GET /admin/keys?sort_by=&sort_order=. Unknown sort
// columns fall back to added_at and unknown orders to asc.
func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := credentials.ParseListOptions(q.Get("sort_by"), q.Get("sort_order"))

	creds, err := h.store.List(r.Context(), opts)
	if err != nil {
		// An unreadable store shows as an empty table rather than an error page.
		h.logger.ErrorContext(r.Context(), "failed to list credentials", "error", err)
		creds = nil
	}

	order := "asc"
	if opts.Descending {
		order = "desc"
	}

	resp := KeyListResponse{
		SortBy:    string(opts.SortBy),
		SortOrder: order,
		Keys:      make([]KeyView, 0, len(creds)),
	}
	for _, c := range creds {
		resp.Keys = append(resp.Keys, keyView(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ToggleKey handles POST /toggle_key/{key}/{action} where action is
// "enable" or "disable".
func (h *AdminHandler) ToggleKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	action := chi.URLParam(r, "action")

	var removed bool
	switch action {
	case "enable":
		removed = false
	case "disable":
		removed = true
	default:
		writeJSON(w, http.StatusBadRequest, ActionResponse{Success: false, Message: "Invalid action"})
		return
	}

	changed, err := h.store.SetRemoved(r.Context(), key, removed)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to toggle credential",
			"credential", logging.RedactAPIKey(key),
			"action", action,
			"error", err,
		)
	}
	if err != nil || !changed {
		writeJSON(w, http.StatusBadRequest, ActionResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to %s key %s", action, key),
		})
		return
	}

	h.logger.InfoContext(r.Context(), "credential toggled",
		"credential", logging.RedactAPIKey(key),
		"removed", removed,
	)
	writeJSON(w, http.StatusOK, ActionResponse{
		Success: true,
		Message: fmt.Sprintf("Key %s %sd successfully", key, action),
	})
}

type addKeyRequest struct {
	Key string `json:"key"`
}

// AddKey handles POST /add_key with a JSON body {"key": "..."}.
func (h *AdminHandler) AddKey(w http.ResponseWriter, r *http.Request) {
	var req addKeyRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBody))
	if err == nil && len(body) > 0 {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ActionResponse{Success: false, Message: "Invalid JSON body"})
		return
	}

	key := strings.TrimSpace(req.Key)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, ActionResponse{Success: false, Message: "Key is required"})
		return
	}

	created, err := h.store.InsertIfAbsent(r.Context(), key)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to add credential",
			"credential", logging.RedactAPIKey(key),
			"error", err,
		)
	}
	if err != nil || !created {
		writeJSON(w, http.StatusBadRequest, ActionResponse{
			Success: false,
			Message: fmt.Sprintf("Key %s already exists or failed to add", key),
		})
		return
	}

	h.logger.InfoContext(r.Context(), "credential added", "credential", logging.RedactAPIKey(key))
	writeJSON(w, http.StatusOK, ActionResponse{
		Success: true,
		Message: fmt.Sprintf("Key %s added successfully", key),
	})
}

func keyView(c credentials.Credential) KeyView {
	return KeyView{
		Key:                    c.ID,
		AddedAt:                credentials.FormatTimestamp(&c.AddedAt),
		SuccessfulRequests:     c.SuccessCount,
		ErrorRequests:          c.ErrorCount,
		ErrorsSinceLastSuccess: c.ErrorsSinceLastSuccess,
		FirstErrorAt:           credentials.FormatTimestamp(c.FirstErrorAt),
		ErrorCounterStartedAt:  credentials.FormatTimestamp(c.ErrorStreakStartedAt),
		Removed:                c.Removed,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
