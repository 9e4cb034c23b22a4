package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onpaku/internal/docstore"
	"onpaku/internal/program"
	"onpaku/internal/vc"
)

func newTestRouter(t *testing.T) (chi.Router, *vc.Service, docstore.Store) {
	t.Helper()
	store := docstore.NewMemoryStore()
	vcService := vc.NewService(store)
	programService := program.NewService(store, vcService)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(programService, logger).Register(r)
	return r, vcService, store
}

func registerProgram(t *testing.T, r chi.Router) {
	t.Helper()
	body := `{
		"program": {"id": "p1", "title": "Pottery Workshop", "place_name": "Town Hall", "prefecture": "Oita"},
		"partner_users": [{"email": "a@x.com", "role": "owner"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/programs", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandleCreate(t *testing.T) {
	t.Run("valid request returns 201 and announces partner credentials", func(t *testing.T) {
		r, vcService, _ := newTestRouter(t)
		registerProgram(t, r)

		pending, err := vcService.ListPendingByEmail(context.Background(), "a@x.com")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "partner_a@x.com_p1", pending[0].ID)
	})

	t.Run("missing title returns 400", func(t *testing.T) {
		r, _, _ := newTestRouter(t)

		body := `{"program": {"id": "p1"}}`
		req := httptest.NewRequest(http.MethodPost, "/programs", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		r, _, _ := newTestRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/programs", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleUpdate(t *testing.T) {
	t.Run("valid partial update returns 200", func(t *testing.T) {
		r, _, _ := newTestRouter(t)
		registerProgram(t, r)

		body := `{"program": {"id": "p1", "title": "Renamed Workshop"}}`
		req := httptest.NewRequest(http.MethodPatch, "/programs", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		get := httptest.NewRequest(http.MethodGet, "/programs/p1", nil)
		getRec := httptest.NewRecorder()
		r.ServeHTTP(getRec, get)
		require.Equal(t, http.StatusOK, getRec.Code)

		var got program.Response
		require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &got))
		assert.Equal(t, "Renamed Workshop", got.Program.Title)
		assert.Equal(t, "Town Hall", got.Program.PlaceName)
	})

	t.Run("unknown program returns 404", func(t *testing.T) {
		r, _, _ := newTestRouter(t)

		body := `{"program": {"id": "nope", "title": "x"}}`
		req := httptest.NewRequest(http.MethodPatch, "/programs", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleFind(t *testing.T) {
	t.Run("returns the program projection", func(t *testing.T) {
		r, _, _ := newTestRouter(t)
		registerProgram(t, r)

		req := httptest.NewRequest(http.MethodGet, "/programs/p1", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got program.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "p1", got.Program.ID)
		require.Len(t, got.PartnerUsers, 1)
		assert.Equal(t, "a@x.com", got.PartnerUsers[0].Email)
	})

	t.Run("unknown program returns 404", func(t *testing.T) {
		r, _, _ := newTestRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/programs/nope", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
