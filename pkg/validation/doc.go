// Package validation enforces an OpenAPI/Swagger schema on HTTP traffic.
//
// A Gate wraps a handler in two phases. The request phase resolves the route
// in a schema.Index, records it on the request context and checks path,
// query and header parameters and the body. The response phase buffers what
// the handler writes and checks the status-specific response schema before
// anything reaches the client.
//
// # Basic Usage
//
//	doc, err := schema.LoadFile("openapi.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	idx, err := schema.Build(doc)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gate, err := validation.New(idx, validation.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", gate.Middleware(handler))
//
// Routers that separate pre- and post-handler middleware can mount the
// phases individually with RequestPhase and ResponsePhase.
//
// # Failures
//
// Rejected requests get RequestErrorStatus (400 by default); invalid
// responses are replaced with a 500. Both carry a JSON body:
//
//	{"message":"Response schema validation failed for GET/status"}
//
// The "errors" array is added when ReturnRequestErrors or
// ReturnResponseErrors is set.
//
// # Engines
//
// JSONSchemaEngine (the default) reports Ajv-style messages such as
// "should have required property 'status'". OpenAPI3Engine uses
// kin-openapi's own schema visitor instead.
package validation
