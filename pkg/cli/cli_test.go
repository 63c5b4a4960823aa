package cli

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/schemagate/pkg/config"
	"github.com/getmockd/schemagate/pkg/logging"
)

const basicSchema = "testdata/basic.json"

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvConfig, "")
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd_JSON(t *testing.T) {
	out, err := runCLI(t, "version", "--json")
	require.NoError(t, err)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestVersionCmd_Text(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "schemagate "+Version)
}

func TestCheckCmd(t *testing.T) {
	out, err := runCLI(t, "check", "--schema", basicSchema, "--json")
	require.NoError(t, err)

	var res checkResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, basicSchema, res.Schema)
	assert.Equal(t, "2.0", res.Version)
	assert.Equal(t, 2, res.Routes)
	assert.Positive(t, res.Shapes)
}

func TestCheckCmd_Errors(t *testing.T) {
	_, err := runCLI(t, "check")
	require.ErrorIs(t, err, config.ErrMissingField)

	_, err = runCLI(t, "check", "--schema", "testdata/missing.yaml")
	require.Error(t, err)
}

func TestRoutesCmd(t *testing.T) {
	out, err := runCLI(t, "routes", "--schema", basicSchema, "--json")
	require.NoError(t, err)

	var routes []routeInfo
	require.NoError(t, json.Unmarshal([]byte(out), &routes))
	require.Len(t, routes, 2)
	assert.Equal(t, routeInfo{Method: "GET", Path: "/", OperationID: "root", Responses: []string{"200"}}, routes[0])
	assert.Equal(t, "getStatus", routes[1].OperationID)

	out, err = runCLI(t, "routes", "--schema", basicSchema)
	require.NoError(t, err)
	assert.Contains(t, out, "METHOD")
	assert.Contains(t, out, "/status")
}

func TestSortStatusKeys(t *testing.T) {
	keys := []string{"default", "4XX", "201", "200"}
	sortStatusKeys(keys)
	assert.Equal(t, []string{"200", "201", "4XX", "default"}, keys)
}

func TestServeCmd_RequiresUpstream(t *testing.T) {
	_, err := runCLI(t, "serve", "--schema", basicSchema)
	require.ErrorIs(t, err, config.ErrMissingField)
}

func newTestGateway(t *testing.T, upstream http.HandlerFunc) http.Handler {
	t.Helper()
	backend := httptest.NewServer(upstream)
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.Schema = basicSchema
	cfg.Upstream = backend.URL
	require.NoError(t, cfg.Validate())

	h, err := newGateway(cfg, logging.Nop())
	require.NoError(t, err)
	return h
}

func TestGateway_ProxiesValidTraffic(t *testing.T) {
	h := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGateway_RejectsInvalidResponse(t *testing.T) {
	h := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"invalid":"field"}`))
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Response schema validation failed for GET/status"}`, rec.Body.String())
}

func TestGateway_CompressedUpstream(t *testing.T) {
	gzipped := func(body string) []byte {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(body))
		_ = zw.Close()
		return buf.Bytes()
	}
	upstream := func(body []byte) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(body)
		}
	}

	valid := gzipped(`{"status":"ok"}`)
	h := newTestGateway(t, upstream(valid))
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(plain))

	h = newTestGateway(t, upstream(gzipped(`{"invalid":"field"}`)))
	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Response schema validation failed for GET/status"}`, rec.Body.String())
}

func TestGateway_HealthAndMetrics(t *testing.T) {
	h := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","routes":2}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "schemagate_schema_routes 2")
	assert.Contains(t, rec.Body.String(), `schemagate_validations_total{phase="response",result="pass"} 1`)
}

func TestGateway_UnknownRoutePassesThrough(t *testing.T) {
	h := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/elsewhere", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
