package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveValidation(t *testing.T) {
	t.Parallel()

	c := NewCollector("test", prometheus.NewRegistry())

	c.ObserveValidation("request", "pass", time.Millisecond)
	c.ObserveValidation("request", "pass", time.Millisecond)
	c.ObserveValidation("response", "fail", 2*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.validations.WithLabelValues("request", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.validations.WithLabelValues("response", "fail")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.validations.WithLabelValues("response", "pass")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestCollector_ObserveUnmatched(t *testing.T) {
	t.Parallel()

	c := NewCollector("test", prometheus.NewRegistry())

	c.ObserveUnmatched("get")
	c.ObserveUnmatched("GET")
	c.ObserveUnmatched("POST")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.unmatched.WithLabelValues("GET")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.unmatched.WithLabelValues("POST")))
}

func TestCollector_SetRoutes(t *testing.T) {
	t.Parallel()

	c := NewCollector("test", prometheus.NewRegistry())
	c.SetRoutes(7)

	assert.Equal(t, 7.0, testutil.ToFloat64(c.routes))
}

func TestCollector_DefaultNamespaceAndRegistry(t *testing.T) {
	t.Parallel()

	c := NewCollector("", nil)
	require.NotNil(t, c.Registry())
	c.ObserveValidation("request", "fail", time.Microsecond)

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["schemagate_validations_total"])
	assert.True(t, names["go_goroutines"], "runtime collector registered on fresh registry")
}

func TestCollector_Handler(t *testing.T) {
	t.Parallel()

	c := NewCollector("test", prometheus.NewRegistry())
	c.ObserveValidation("response", "fail", time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_validations_total{phase="response",result="fail"} 1`)
}

func TestCollector_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	NewCollector("dup", reg)
	assert.Panics(t, func() { NewCollector("dup", reg) })
}
