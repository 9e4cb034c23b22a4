package onpaku

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onpaku/internal/docstore"
	"onpaku/internal/platform/middleware"
	"onpaku/internal/program"
	programhandler "onpaku/internal/program/handler"
	"onpaku/internal/reservation"
	reservationhandler "onpaku/internal/reservation/handler"
	"onpaku/internal/user"
	userhandler "onpaku/internal/user/handler"
	"onpaku/internal/vc"
	vchandler "onpaku/internal/vc/handler"
)

const testAPIKey = "integration-test-key"

// newRouter assembles the API surface the way main does, over an
// in-memory store.
func newRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := docstore.NewMemoryStore()

	vcService := vc.NewService(store, vc.WithLogger(logger))
	programService := program.NewService(store, vcService, program.WithLogger(logger))
	userService := user.NewService(store, vcService, programService, user.WithLogger(logger))
	reservationService := reservation.NewService(store, vcService, reservation.WithLogger(logger))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Route("/api/v1/onpaku", func(api chi.Router) {
		api.Use(middleware.Timeout(30 * time.Second))
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAPIKey(testAPIKey, logger))

		userhandler.New(userService, logger).Register(api)
		programhandler.New(programService, logger).Register(api)
		reservationhandler.New(reservationService, logger).Register(api)
		vchandler.New(vcService, logger).Register(api)
	})
	return r
}

func do(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func pendingFor(t *testing.T, r chi.Router, email string) []vc.PendingVC {
	t.Helper()
	rec := do(t, r, http.MethodGet, "/api/v1/onpaku/vcs/pending?email="+email, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []vc.PendingVC
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	return got
}

func TestRegisterReserveScenario(t *testing.T) {
	r := newRouter(t)

	// Register user A: one pending user credential.
	rec := do(t, r, http.MethodPost, "/api/v1/onpaku/users", `{
		"id": "u1",
		"email": "a@x.com",
		"family_name": "Yamada",
		"first_name": "Taro",
		"birth_year": 1990,
		"prefecture": "Oita"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	pending := pendingFor(t, r, "a@x.com")
	require.Len(t, pending, 1)
	assert.Equal(t, "user_a@x.com", pending[0].ID)

	// Create program P with partner A: a second pending credential.
	rec = do(t, r, http.MethodPost, "/api/v1/onpaku/programs", `{
		"program": {"id": "P", "title": "Pottery Workshop", "place_name": "Town Hall", "prefecture": "Oita"},
		"partner_users": [{"email": "a@x.com", "role": "owner"}]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	pending = pendingFor(t, r, "a@x.com")
	require.Len(t, pending, 2)
	assert.Equal(t, "partner_a@x.com_P", pending[0].ID)

	// Reserve execution E of P: a third pending credential.
	rec = do(t, r, http.MethodPost, "/api/v1/onpaku/reservations", `{
		"reservation_id": "E-booking",
		"email": "a@x.com",
		"execution": {
			"id": "E",
			"program_id": "P",
			"start_time": "2026-10-01T01:00:00Z",
			"end_time": "2026-10-01T03:00:00Z",
			"capacity": 10,
			"price": 3000
		}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	pending = pendingFor(t, r, "a@x.com")
	require.Len(t, pending, 3)

	// Complete the partner credential; two pending remain.
	rec = do(t, r, http.MethodPatch, "/api/v1/onpaku/vcs/status", `{
		"documentId": "partner_a@x.com_P",
		"status": "completed"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	pending = pendingFor(t, r, "a@x.com")
	require.Len(t, pending, 2)
}

func TestUserUpdateDiffRegistersPartnerOnProgram(t *testing.T) {
	r := newRouter(t)

	rec := do(t, r, http.MethodPost, "/api/v1/onpaku/users", `{
		"id": "u1",
		"email": "a@x.com",
		"family_name": "Yamada",
		"first_name": "Taro",
		"birth_year": 1990
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/v1/onpaku/programs", `{
		"program": {"id": "P", "title": "Pottery Workshop"},
		"partner_users": []
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodPatch, "/api/v1/onpaku/users", `{
		"id": "u1",
		"email": "a@x.com",
		"management_programs": [{"programId": "P", "role": "staff"}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// The diff step registered A on P's partner list.
	rec = do(t, r, http.MethodGet, "/api/v1/onpaku/programs/P", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got program.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.PartnerUsers, 1)
	assert.Equal(t, "a@x.com", got.PartnerUsers[0].Email)
	assert.Equal(t, "staff", got.PartnerUsers[0].Role)

	// And announced a partner credential alongside the user one.
	pending := pendingFor(t, r, "a@x.com")
	require.Len(t, pending, 2)
	assert.Equal(t, "partner_a@x.com_P", pending[0].ID)
}

func TestRequestsWithoutAPIKeyAreRejected(t *testing.T) {
	r := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/onpaku/vcs/pending?email=a@x.com", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/onpaku/vcs/pending?email=a@x.com", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
