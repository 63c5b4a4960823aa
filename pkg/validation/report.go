package validation

import (
	"net/http"

	"github.com/getmockd/schemagate/pkg/httputil"
)

// Phase names the gate that produced an outcome.
type Phase string

// Validation phases.
const (
	PhaseRequest  Phase = "request"
	PhaseResponse Phase = "response"
)

// ErrorPayload is the JSON body sent when validation fails.
type ErrorPayload struct {
	Message string      `json:"message"`
	Errors  []Violation `json:"errors,omitempty"`
}

// BuildPayload builds the error body for a failed outcome. The message is the
// phase prefix followed directly by method and path, e.g.
// "Response schema validation failed for GET/status".
func BuildPayload(phase Phase, outcome Outcome, cfg Config, method, path string) ErrorPayload {
	prefix := "Request schema validation failed for "
	include := cfg.ReturnRequestErrors
	if phase == PhaseResponse {
		prefix = "Response schema validation failed for "
		include = cfg.ReturnResponseErrors
	}

	p := ErrorPayload{Message: prefix + method + path}
	if include && len(outcome.Violations) > 0 {
		p.Errors = make([]Violation, len(outcome.Violations))
		copy(p.Errors, outcome.Violations)
	}
	return p
}

const contentTypeJSON = httputil.ContentTypeJSON

// errorContentType decides the Content-Type of a response failure. Only the
// header is affected; the payload is always the JSON error object.
func errorContentType(cfg Config, declared string) string {
	if cfg.PreserveResponseContentType && declared != "" {
		return declared
	}
	return contentTypeJSON
}

func writeError(w http.ResponseWriter, status int, contentType string, p ErrorPayload) {
	httputil.WriteJSONAs(w, status, contentType, p)
}
