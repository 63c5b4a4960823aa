package validation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayload(t *testing.T) {
	t.Parallel()

	failed := invalidOutcome(Violation{Message: "should have required property 'status'"})

	tests := []struct {
		name  string
		phase Phase
		cfg   Config
		want  string
	}{
		{
			name:  "response hides errors by default",
			phase: PhaseResponse,
			want:  `{"message":"Response schema validation failed for GET/status"}`,
		},
		{
			name:  "response with errors",
			phase: PhaseResponse,
			cfg:   Config{ReturnResponseErrors: true},
			want:  `{"message":"Response schema validation failed for GET/status","errors":[{"path":"","message":"should have required property 'status'"}]}`,
		},
		{
			name:  "request flag does not leak into response",
			phase: PhaseResponse,
			cfg:   Config{ReturnRequestErrors: true},
			want:  `{"message":"Response schema validation failed for GET/status"}`,
		},
		{
			name:  "request with errors",
			phase: PhaseRequest,
			cfg:   Config{ReturnRequestErrors: true},
			want:  `{"message":"Request schema validation failed for GET/status","errors":[{"path":"","message":"should have required property 'status'"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := json.Marshal(BuildPayload(tt.phase, failed, tt.cfg, http.MethodGet, "/status"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestBuildPayload_EmptyViolationsOmitted(t *testing.T) {
	t.Parallel()

	p := BuildPayload(PhaseResponse, Outcome{}, Config{ReturnResponseErrors: true}, http.MethodPost, "/pets")
	assert.Nil(t, p.Errors)
	assert.Equal(t, "Response schema validation failed for POST/pets", p.Message)
}

func TestErrorContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, contentTypeJSON, errorContentType(Config{}, "text/html"))
	assert.Equal(t, "text/html", errorContentType(Config{PreserveResponseContentType: true}, "text/html"))
	assert.Equal(t, contentTypeJSON, errorContentType(Config{PreserveResponseContentType: true}, ""))
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeError(rec, http.StatusInternalServerError, "text/plain", ErrorPayload{Message: "m"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"message":"m"}`, rec.Body.String())
}
