package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		upstream string
		want     string
	}{
		{name: "empty", upstream: "", want: "required"},
		{name: "bad scheme", upstream: "ftp://example.com", want: "scheme"},
		{name: "unparsable", upstream: "http://[::1", want: "invalid upstream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(Options{Upstream: tt.upstream})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProxy_Forwards(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("X-Path", r.URL.Path)
		w.Header().Set("X-Query", r.URL.RawQuery)
		w.Header().Set("X-Forwarded-Host-Seen", r.Header.Get("X-Forwarded-Host"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write(body)
	}))
	defer upstream.Close()

	p, err := New(Options{Upstream: upstream.URL + "/base"})
	require.NoError(t, err)
	assert.Equal(t, "/base", p.Target().Path)

	req := httptest.NewRequest(http.MethodPost, "http://gateway.local/pets?limit=1", strings.NewReader("payload"))
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "payload", rec.Body.String())
	assert.Equal(t, "/base/pets", rec.Header().Get("X-Path"))
	assert.Equal(t, "limit=1", rec.Header().Get("X-Query"))
	assert.Equal(t, "gateway.local", rec.Header().Get("X-Forwarded-Host-Seen"))
}

func TestProxy_UpstreamDown(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	p, err := New(Options{Upstream: addr})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pets", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad_gateway")
}
