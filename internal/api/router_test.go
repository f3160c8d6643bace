package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiranshivaraju/openscribe/internal/api"
	mw "github.com/kiranshivaraju/openscribe/internal/api/middleware"
	"github.com/kiranshivaraju/openscribe/internal/cache"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

const readOnlyKey = "os_read1234567890abcdef"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	st := store.NewMemoryStore()
	hash, err := bcrypt.GenerateFromPassword([]byte(readOnlyKey), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, st.CreateAPIKey(context.Background(), &models.APIKey{
		ID:        uuid.New(),
		OwnerID:   store.DefaultOwnerID,
		Name:      "reader",
		KeyHash:   string(hash),
		KeyPrefix: readOnlyKey[:mw.KeyPrefixLen],
		Scopes:    []string{"read"},
	}))

	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(st),
		RateLimit: mw.NewRateLimit(cache.NewMemoryCache(), 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
	})
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)["code"].(string)
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Content-Type"))
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter(t)
	jobPath := "/api/v1/jobs/" + uuid.NewString()

	endpoints := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/analysis/style"},
		{http.MethodPost, "/api/v1/analysis/topics"},
		{http.MethodPost, "/api/v1/strategies/generate"},
		{http.MethodPost, "/api/v1/content/generate"},
		{http.MethodGet, jobPath},
		{http.MethodGet, jobPath + "/status"},
		{http.MethodGet, "/api/v1/analytics/engagement"},
		{http.MethodGet, "/api/v1/analytics/topics"},
		{http.MethodGet, "/api/v1/strategies"},
		{http.MethodGet, "/api/v1/strategies/current"},
		{http.MethodPost, "/api/v1/credentials"},
		{http.MethodPost, "/api/v1/admin/keys"},
		{http.MethodGet, "/api/v1/admin/keys"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(ep.method, ep.path, nil))

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "INVALID_TOKEN", errCode(t, w))
		})
	}
}

func TestRouter_ScopeChecks(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		status int
		code   string
	}{
		{http.MethodGet, "/api/v1/strategies", http.StatusNotImplemented, "NOT_IMPLEMENTED"},
		{http.MethodPost, "/api/v1/content/generate", http.StatusForbidden, "FORBIDDEN"},
		{http.MethodGet, "/api/v1/admin/keys", http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+readOnlyKey)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errCode(t, w))
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errCode(t, w))
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
