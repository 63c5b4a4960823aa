package validation

// Violation is one structural problem reported by the validation engine.
type Violation struct {
	// Path locates the offending value in data-path form, e.g. ".items[0].name".
	// The root value is "".
	Path string `json:"path"`

	// Message is the engine's description of the problem.
	Message string `json:"message"`
}

// Outcome is the result of a single validation call. Violations keep the
// order the engine reported them in.
type Outcome struct {
	Valid      bool
	Violations []Violation
}

func validOutcome() Outcome {
	return Outcome{Valid: true}
}

func invalidOutcome(vs ...Violation) Outcome {
	return Outcome{Valid: false, Violations: vs}
}

// merge appends the violations of other, prefixing each path.
func (o *Outcome) merge(prefix string, other Outcome) {
	if other.Valid {
		return
	}
	o.Valid = false
	for _, v := range other.Violations {
		o.Violations = append(o.Violations, Violation{Path: prefix + v.Path, Message: v.Message})
	}
}
