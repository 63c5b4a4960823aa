package validation

import (
	"fmt"

	"github.com/getmockd/schemagate/pkg/schema"
)

// Validator checks values against schema shapes through an Engine. Shapes
// passed to NewValidator are compiled up front; the result is read-only and
// safe for concurrent use.
type Validator struct {
	engine   Engine
	checkers map[*schema.Shape]Checker
}

// NewValidator compiles every shape with engine. A nil engine selects the
// JSON Schema engine. Any compile failure is returned, since a shape that
// cannot be compiled can never be enforced.
func NewValidator(engine Engine, shapes ...*schema.Shape) (*Validator, error) {
	if engine == nil {
		engine = NewJSONSchemaEngine()
	}
	v := &Validator{
		engine:   engine,
		checkers: make(map[*schema.Shape]Checker, len(shapes)),
	}
	for _, s := range shapes {
		if s == nil {
			continue
		}
		c, err := engine.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s: %w", s.ID, err)
		}
		v.checkers[s] = c
	}
	return v, nil
}

// Validate checks value against shape. A nil shape accepts everything.
// Shapes that were not pre-compiled are compiled for this call only.
func (v *Validator) Validate(value any, shape *schema.Shape) Outcome {
	if shape == nil {
		return validOutcome()
	}
	c, ok := v.checkers[shape]
	if !ok {
		var err error
		if c, err = v.engine.Compile(shape); err != nil {
			return invalidOutcome(Violation{Message: "schema could not be compiled: " + err.Error()})
		}
	}
	vs := c.Check(value)
	if len(vs) == 0 {
		return validOutcome()
	}
	out := make([]Violation, len(vs))
	copy(out, vs)
	return invalidOutcome(out...)
}
