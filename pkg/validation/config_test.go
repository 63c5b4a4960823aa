package validation

import (
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.True(t, cfg.ValidateRequest)
	assert.True(t, cfg.ValidateResponse)
	assert.False(t, cfg.ReturnRequestErrors)
	assert.False(t, cfg.ReturnResponseErrors)
	assert.Equal(t, http.StatusBadRequest, cfg.RequestErrorStatus)
	assert.Equal(t, DefaultMaxBodyBytes, cfg.MaxBodyBytes)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "zero value", cfg: Config{}},
		{name: "422", cfg: Config{RequestErrorStatus: 422}},
		{name: "2xx status", cfg: Config{RequestErrorStatus: 200}, wantErr: "requestErrorStatus"},
		{name: "negative body cap", cfg: Config{MaxBodyBytes: -1}, wantErr: "maxBodyBytes"},
		{name: "body cap at limit", cfg: Config{MaxBodyBytes: MaxBodyBytesLimit}},
		{name: "body cap above limit", cfg: Config{MaxBodyBytes: MaxBodyBytesLimit + 1}, wantErr: "maxBodyBytes"},
		{name: "body cap max int64", cfg: Config{MaxBodyBytes: math.MaxInt64}, wantErr: "maxBodyBytes"},
		{name: "bad pattern", cfg: Config{IgnorePaths: []string{"/health/[a"}}, wantErr: "invalid ignore pattern"},
		{name: "good pattern", cfg: Config{IgnorePaths: []string{"/internal/**"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Ignored(t *testing.T) {
	t.Parallel()

	cfg := Config{IgnorePaths: []string{"/internal/**", "/health"}}
	assert.True(t, cfg.ignored("/internal/debug/vars"))
	assert.True(t, cfg.ignored("/health"))
	assert.False(t, cfg.ignored("/healthz"))
	assert.False(t, cfg.ignored("/status"))
}

func TestConfig_YAML(t *testing.T) {
	t.Parallel()

	var cfg Config
	err := yaml.Unmarshal([]byte(`
validateResponse: true
returnResponseErrors: true
preserveResponseContentType: true
requestErrorStatus: 422
ignorePaths: ["/metrics"]
`), &cfg)
	require.NoError(t, err)

	assert.True(t, cfg.ValidateResponse)
	assert.True(t, cfg.ReturnResponseErrors)
	assert.True(t, cfg.PreserveResponseContentType)
	assert.Equal(t, 422, cfg.RequestErrorStatus)
	assert.Equal(t, []string{"/metrics"}, cfg.IgnorePaths)
}
