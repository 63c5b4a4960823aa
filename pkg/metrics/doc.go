// Package metrics exposes schemagate's Prometheus metrics.
//
// A Collector owns its registry so tests and embedded gates never collide on
// the process-wide default:
//
//	collector := metrics.NewCollector("schemagate", nil)
//	gate, _ := validation.New(idx, cfg, validation.WithMetrics(collector))
//	mux.Handle("/metrics", collector.Handler())
//
// # Metrics
//
//   - <ns>_validations_total{phase,result}: validation decisions, where phase
//     is "request" or "response" and result is "pass" or "fail".
//   - <ns>_validation_duration_seconds{phase}: time spent validating.
//   - <ns>_unmatched_requests_total{method}: requests with no schema route.
//   - <ns>_schema_routes: routes in the loaded schema index.
package metrics
