package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/rotor/pkg/credentials"
)

func newAdminRouter(t *testing.T, keys ...string) (http.Handler, *credentials.MemoryStore) {
	t.Helper()
	store := credentials.NewMemoryStore()
	for _, k := range keys {
		_, err := store.InsertIfAbsent(context.Background(), k)
		require.NoError(t, err)
	}

	h := NewAdminHandler(store)
	r := chi.NewRouter()
	r.Get("/admin/keys", h.ListKeys)
	r.Post("/toggle_key/{key}/{action}", h.ToggleKey)
	r.Post("/add_key", h.AddKey)
	return r, store
}

func doAdmin(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, ActionResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, strings.NewReader(body)))

	var resp ActionResponse
	if method == http.MethodPost {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func TestAdminHandler_AddKey(t *testing.T) {
	router, store := newAdminRouter(t)

	w, resp := doAdmin(t, router, http.MethodPost, "/add_key", `{"key":" new-key "}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Key new-key added successfully", resp.Message)

	_, err := store.Get(context.Background(), "new-key")
	require.NoError(t, err)

	w, resp = doAdmin(t, router, http.MethodPost, "/add_key", `{"key":"new-key"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Key new-key already exists or failed to add", resp.Message)

	w, resp = doAdmin(t, router, http.MethodPost, "/add_key", `{"key":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON body", resp.Message)

	w, resp = doAdmin(t, router, http.MethodPost, "/add_key", `{"key":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Key is required", resp.Message)
}

func TestAdminHandler_ToggleKey(t *testing.T) {
	router, store := newAdminRouter(t, "k1")

	w, resp := doAdmin(t, router, http.MethodPost, "/toggle_key/k1/disable", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Key k1 disabled successfully", resp.Message)

	active, err := store.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	w, resp = doAdmin(t, router, http.MethodPost, "/toggle_key/k1/enable", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Key k1 enabled successfully", resp.Message)

	w, resp = doAdmin(t, router, http.MethodPost, "/toggle_key/missing/disable", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Failed to disable key missing", resp.Message)

	w, resp = doAdmin(t, router, http.MethodPost, "/toggle_key/k1/delete", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid action", resp.Message)
}

func TestAdminHandler_ListKeys(t *testing.T) {
	router, store := newAdminRouter(t, "k1", "k2")
	require.NoError(t, store.RecordOutcome(context.Background(), "k2", credentials.Succeeded()))
	require.NoError(t, store.RecordOutcome(context.Background(), "k1", credentials.Failed(429, nil)))
	_, err := store.SetRemoved(context.Background(), "k1", true)
	require.NoError(t, err)

	w, _ := doAdmin(t, router, http.MethodGet, "/admin/keys?sort_by=successful_requests&sort_order=desc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var list KeyListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))

	assert.Equal(t, "successful_requests", list.SortBy)
	assert.Equal(t, "desc", list.SortOrder)
	require.Len(t, list.Keys, 2)

	assert.Equal(t, "k2", list.Keys[0].Key)
	assert.EqualValues(t, 1, list.Keys[0].SuccessfulRequests)
	assert.Equal(t, "-", list.Keys[0].FirstErrorAt)

	assert.Equal(t, "k1", list.Keys[1].Key)
	assert.True(t, list.Keys[1].Removed)
	assert.EqualValues(t, 1, list.Keys[1].ErrorsSinceLastSuccess)
	assert.NotEqual(t, "-", list.Keys[1].FirstErrorAt)
	assert.Len(t, list.Keys[1].AddedAt, len(credentials.TimestampLayout))
}

func TestAdminHandler_ListKeysFallbacks(t *testing.T) {
	router, _ := newAdminRouter(t)

	w, _ := doAdmin(t, router, http.MethodGet, "/admin/keys?sort_by=drop+table&sort_order=sideways", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list KeyListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, "added_at", list.SortBy)
	assert.Equal(t, "asc", list.SortOrder)
	assert.NotNil(t, list.Keys)
	assert.Empty(t, list.Keys)
}
