package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	t.Run("writes JSON with correct content type", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()

		WriteJSON(rec, http.StatusOK, map[string]string{"foo": "bar"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, ContentTypeJSON, rec.Header().Get("Content-Type"))

		var result map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, "bar", result["foo"])
	})

	t.Run("handles nil data", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()

		WriteJSON(rec, http.StatusNoContent, nil)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestWriteJSONAs(t *testing.T) {
	t.Parallel()

	t.Run("no trailing newline", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()

		WriteJSONAs(rec, http.StatusInternalServerError, "text/html", map[string]string{"message": "x"})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
		assert.Equal(t, `{"message":"x"}`, rec.Body.String())
		assert.Equal(t, "15", rec.Header().Get("Content-Length"))
	})

	t.Run("unencodable data", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()

		WriteJSONAs(rec, http.StatusOK, "text/plain", map[string]any{"f": func() {}})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, ContentTypeJSON, rec.Header().Get("Content-Type"))
	})
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadGateway, "upstream_unavailable", "connection refused")

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var result map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "upstream_unavailable", result["error"])
	assert.Equal(t, "connection refused", result["message"])
}
