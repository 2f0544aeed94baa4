package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusTeapot, map[string]int{"n": 7}))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":7}`, w.Body.String())
}

func TestWriteErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		error  string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "bad dn") }, http.StatusBadRequest, "bad dn"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "unauthorized") }, http.StatusUnauthorized, "unauthorized"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "no such entry") }, http.StatusNotFound, "no such entry"},
		{"internal", WriteInternalError, http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.error, body["error"])
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	var dest struct {
		DN string `json:"dn"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"dn":"dc=example,dc=org"}`))
	w := httptest.NewRecorder()
	require.True(t, ParseJSONOrError(w, r, &dest))
	assert.Equal(t, "dc=example,dc=org", dest.DN)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	w = httptest.NewRecorder()
	assert.False(t, ParseJSONOrError(w, r, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25&recursive=true&bad=x", nil)

	assert.Equal(t, 25, ParseQueryInt(r, "limit", 10))
	assert.Equal(t, 10, ParseQueryInt(r, "missing", 10))
	assert.Equal(t, 10, ParseQueryInt(r, "bad", 10))
	assert.True(t, ParseQueryBool(r, "recursive", false))
	assert.False(t, ParseQueryBool(r, "missing", false))
}
