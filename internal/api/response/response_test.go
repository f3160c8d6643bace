package response_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/openscribe/internal/api/response"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSuccessEnvelopes(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
	}{
		{"json", func(w http.ResponseWriter) { response.JSON(w, map[string]string{"id": "abc"}) }, http.StatusOK},
		{"created", func(w http.ResponseWriter) { response.Created(w, map[string]string{"id": "abc"}) }, http.StatusCreated},
		{"accepted", func(w http.ResponseWriter) { response.Accepted(w, map[string]string{"id": "abc"}) }, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assert.Equal(t, tt.status, w.Code)
			data := decodeBody(t, w)["data"].(map[string]any)
			assert.Equal(t, "abc", data["id"])
		})
	}
}

func TestList(t *testing.T) {
	w := httptest.NewRecorder()
	response.List(w, []string{"a", "b"}, 2, 10)

	body := decodeBody(t, w)
	assert.Len(t, body["data"], 2)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["count"])
	assert.Equal(t, float64(10), meta["limit"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "topic is required", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	e := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "INVALID_REQUEST", e["code"])
	assert.Equal(t, "topic is required", e["message"])
	_, hasDetails := e["details"]
	assert.False(t, hasDetails)
}

func TestErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusServiceUnavailable, "DEGRADED", "degraded", map[string]string{"cache": "degraded"})

	e := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, map[string]any{"cache": "degraded"}, e["details"])
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	response.NoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": "x"}`))
	require.NoError(t, response.Decode(httptest.NewRecorder(), r, &v))
	assert.Equal(t, "x", v.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.True(t, errors.Is(response.Decode(httptest.NewRecorder(), r, &v), response.ErrEmptyBody))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": "x", "extra": 1}`))
	assert.Error(t, response.Decode(httptest.NewRecorder(), r, &v))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": "`+strings.Repeat("a", response.MaxBodyBytes)+`"}`))
	assert.Error(t, response.Decode(httptest.NewRecorder(), r, &v))
}
