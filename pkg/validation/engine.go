package validation

import "github.com/getmockd/schemagate/pkg/schema"

// Engine is the structural validation capability. Implementations must be
// pure: compiling a shape and checking a value never mutate either.
type Engine interface {
	// Compile prepares a shape for repeated checks.
	Compile(s *schema.Shape) (Checker, error)
}

// Checker validates values against one compiled shape.
type Checker interface {
	// Check returns the violations of value, or nil if it conforms.
	Check(value any) []Violation
}
