package validation

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/getmockd/schemagate/pkg/schema"
)

// OpenAPI3Engine validates with kin-openapi's own schema visitor. It reads
// the resolved *openapi3.Schema directly, so it understands every OpenAPI
// keyword natively, and reports kin-openapi's wording
// (e.g. `property "status" is missing`).
type OpenAPI3Engine struct{}

// NewOpenAPI3Engine returns the kin-openapi engine.
func NewOpenAPI3Engine() *OpenAPI3Engine {
	return &OpenAPI3Engine{}
}

// Compile implements Engine.
func (e *OpenAPI3Engine) Compile(s *schema.Shape) (Checker, error) {
	if s == nil || s.Ref == nil || s.Ref.Value == nil {
		id := "<nil>"
		if s != nil {
			id = s.ID
		}
		return nil, fmt.Errorf("openapi3: shape %s has no resolved schema", id)
	}
	return &openAPI3Checker{schema: s.Ref.Value}, nil
}

type openAPI3Checker struct {
	schema *openapi3.Schema
}

func (c *openAPI3Checker) Check(value any) []Violation {
	err := c.schema.VisitJSON(value, openapi3.MultiErrors())
	if err == nil {
		return nil
	}
	var out []Violation
	flattenSchemaErrors(err, &out)
	return out
}

// flattenSchemaErrors converts kin-openapi errors into violations.
func flattenSchemaErrors(err error, out *[]Violation) {
	switch e := err.(type) {
	case openapi3.MultiError:
		for _, inner := range e {
			flattenSchemaErrors(inner, out)
		}
	case *openapi3.SchemaError:
		*out = append(*out, Violation{Path: pointerPath(e.JSONPointer()), Message: e.Reason})
	default:
		*out = append(*out, Violation{Message: err.Error()})
	}
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func pointerPath(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("/" + pointerEscaper.Replace(p))
	}
	return dataPath(b.String())
}
