package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/getmockd/schemagate/pkg/schema"
)

// JSONSchemaEngine validates with santhosh-tekuri/jsonschema and renders
// messages in the Ajv wording clients of the gateway already parse, e.g.
// "should have required property 'status'".
type JSONSchemaEngine struct{}

// NewJSONSchemaEngine returns the default engine.
func NewJSONSchemaEngine() *JSONSchemaEngine {
	return &JSONSchemaEngine{}
}

const shapeResource = "shape.json"

// Compile implements Engine.
func (e *JSONSchemaEngine) Compile(s *schema.Shape) (Checker, error) {
	if s == nil || len(s.Raw) == 0 {
		return nil, errors.New("jsonschema: empty shape")
	}

	doc, err := decodeJSON(s.Raw)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: shape %s is not valid JSON: %w", s.ID, err)
	}
	if s.Dialect == schema.DialectDraft4 {
		doc = adaptNullable(doc)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: shape %s: %w", s.ID, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft4
	if s.Dialect == schema.Dialect2020_12 {
		compiler.Draft = jsonschema.Draft2020
	}
	if err := compiler.AddResource(shapeResource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("jsonschema: shape %s: %w", s.ID, err)
	}
	compiled, err := compiler.Compile(shapeResource)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: compile %s: %w", s.ID, err)
	}
	return &jsonSchemaChecker{schema: compiled, doc: doc}, nil
}

type jsonSchemaChecker struct {
	schema *jsonschema.Schema
	doc    any
}

func (c *jsonSchemaChecker) Check(value any) []Violation {
	// The engine converts every number to a big.Rat and panics on values it
	// cannot represent, so those are reported before it sees them.
	if ptr, bad := findUnrepresentable(value, ""); bad {
		return []Violation{{Path: dataPath(ptr), Message: "should be a finite number"}}
	}
	err := c.schema.Validate(value)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []Violation{{Message: err.Error()}}
	}

	var leaves []*jsonschema.ValidationError
	collectLeaves(ve, &leaves)
	// The engine walks properties in map order; sort for stable output.
	sort.SliceStable(leaves, func(i, j int) bool {
		if leaves[i].InstanceLocation != leaves[j].InstanceLocation {
			return leaves[i].InstanceLocation < leaves[j].InstanceLocation
		}
		return leaves[i].KeywordLocation < leaves[j].KeywordLocation
	})

	var out []Violation
	for _, leaf := range leaves {
		out = append(out, c.render(leaf, value)...)
	}
	return out
}

// collectLeaves flattens the error tree. Combinators are reported as one
// violation rather than one per failed branch.
func collectLeaves(e *jsonschema.ValidationError, out *[]*jsonschema.ValidationError) {
	kw := lastToken(e.KeywordLocation)
	if len(e.Causes) == 0 || kw == "oneOf" || kw == "anyOf" {
		*out = append(*out, e)
		return
	}
	for _, cause := range e.Causes {
		collectLeaves(cause, out)
	}
}

func (c *jsonSchemaChecker) render(e *jsonschema.ValidationError, value any) []Violation {
	instance := decodePointer(e.InstanceLocation)
	path := dataPath(instance)
	kw := lastToken(e.KeywordLocation)
	ptr := decodePointer(keywordPointer(e.AbsoluteKeywordLocation))
	kv, ok := lookup(c.doc, ptr)
	if !ok {
		return []Violation{{Path: path, Message: e.Message}}
	}

	msg := ""
	switch kw {
	case "required":
		obj, _ := lookupValue(value, instance)
		var out []Violation
		for _, name := range stringList(kv) {
			if m, isObj := obj.(map[string]any); isObj {
				if _, present := m[name]; present {
					continue
				}
			}
			out = append(out, Violation{Path: path, Message: fmt.Sprintf("should have required property '%s'", name)})
		}
		if len(out) > 0 {
			return out
		}
	case "type":
		msg = "should be " + strings.Join(stringList(kv), ",")
	case "enum":
		msg = "should be equal to one of the allowed values"
	case "const":
		msg = "should be equal to constant"
	case "minimum", "maximum":
		op := ">="
		if kw == "maximum" {
			op = "<="
		}
		if excl, _ := lookup(c.doc, parentPointer(ptr)+"/exclusive"+strings.ToUpper(kw[:1])+kw[1:]); excl == true {
			op = strings.TrimSuffix(op, "=")
		}
		msg = fmt.Sprintf("should be %s %s", op, formatNumber(kv))
	case "exclusiveMinimum":
		msg = "should be > " + formatNumber(kv)
	case "exclusiveMaximum":
		msg = "should be < " + formatNumber(kv)
	case "multipleOf":
		msg = "should be multiple of " + formatNumber(kv)
	case "minLength":
		msg = fmt.Sprintf("should NOT be shorter than %s characters", formatNumber(kv))
	case "maxLength":
		msg = fmt.Sprintf("should NOT be longer than %s characters", formatNumber(kv))
	case "minItems":
		msg = fmt.Sprintf("should NOT have fewer than %s items", formatNumber(kv))
	case "maxItems":
		msg = fmt.Sprintf("should NOT have more than %s items", formatNumber(kv))
	case "minProperties":
		msg = fmt.Sprintf("should NOT have fewer than %s properties", formatNumber(kv))
	case "maxProperties":
		msg = fmt.Sprintf("should NOT have more than %s properties", formatNumber(kv))
	case "uniqueItems":
		msg = "should NOT have duplicate items"
	case "pattern":
		msg = fmt.Sprintf("should match pattern \"%v\"", kv)
	case "format":
		msg = fmt.Sprintf("should match format \"%v\"", kv)
	case "additionalProperties":
		msg = "should NOT have additional properties"
	case "oneOf":
		msg = "should match exactly one schema in oneOf"
	case "anyOf":
		msg = "should match some schema in anyOf"
	case "not":
		msg = "should NOT be valid"
	}
	if msg == "" {
		msg = e.Message
	}
	return []Violation{{Path: path, Message: msg}}
}

// adaptNullable rewrites OpenAPI 3.0 `nullable: true` into a type union the
// draft-04 engine understands.
func adaptNullable(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = adaptNullable(val)
		}
		if t["nullable"] == true {
			if typ, ok := t["type"].(string); ok {
				t["type"] = []any{typ, "null"}
			}
			if enum, ok := t["enum"].([]any); ok {
				t["enum"] = append(enum, nil)
			}
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = adaptNullable(val)
		}
		return t
	default:
		return v
	}
}

func keywordPointer(absolute string) string {
	if i := strings.IndexByte(absolute, '#'); i >= 0 {
		return absolute[i+1:]
	}
	return ""
}

func parentPointer(ptr string) string {
	if i := strings.LastIndexByte(ptr, '/'); i >= 0 {
		return ptr[:i]
	}
	return ""
}

func lastToken(ptr string) string {
	i := strings.LastIndexByte(ptr, '/')
	return unescapeToken(pathUnescape(ptr[i+1:]))
}

// decodePointer undoes the percent-encoding the engine applies to every
// token of its locations. The ~0 and ~1 escapes are left in place so the
// result is still a valid JSON pointer.
func decodePointer(ptr string) string {
	if !strings.Contains(ptr, "%") {
		return ptr
	}
	toks := strings.Split(ptr, "/")
	for i, tok := range toks {
		toks[i] = pathUnescape(tok)
	}
	return strings.Join(toks, "/")
}

func pathUnescape(tok string) string {
	if u, err := url.PathUnescape(tok); err == nil {
		return u
	}
	return tok
}

func lookup(doc any, ptr string) (any, bool) {
	p, err := jsonpointer.New(ptr)
	if err != nil {
		return nil, false
	}
	v, _, err := p.Get(doc)
	if err != nil {
		return nil, false
	}
	return v, true
}

func lookupValue(value any, instanceLocation string) (any, bool) {
	if instanceLocation == "" {
		return value, true
	}
	return lookup(value, instanceLocation)
}

func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []string:
		return t
	}
	return nil
}

func formatNumber(v any) string {
	switch n := v.(type) {
	case json.Number:
		if r, ok := new(big.Rat).SetString(n.String()); ok && r.IsInt() {
			return r.Num().String()
		}
		return n.String()
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// decodeJSON unmarshals keeping numbers as json.Number so integers beyond
// 2^53 keep their precision.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid character after top-level value")
	}
	return v, nil
}

// maxNumberExponent bounds the decimal exponent of accepted numbers.
const maxNumberExponent = 4096

// validNumber reports whether s is JSON number syntax the engine can hold as
// an exact rational.
func validNumber(s string) bool {
	if !numberRe.MatchString(s) {
		return false
	}
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		exp, err := strconv.Atoi(strings.TrimPrefix(s[i+1:], "+"))
		if err != nil || exp > maxNumberExponent || exp < -maxNumberExponent {
			return false
		}
	}
	_, ok := new(big.Rat).SetString(s)
	return ok
}

// findUnrepresentable returns the pointer of the first number in v that
// is NaN, infinite or outside the exponent bound.
func findUnrepresentable(v any, ptr string) (string, bool) {
	switch t := v.(type) {
	case json.Number:
		return ptr, !validNumber(t.String())
	case float64:
		return ptr, math.IsNaN(t) || math.IsInf(t, 0)
	case float32:
		return ptr, math.IsNaN(float64(t)) || math.IsInf(float64(t), 0)
	case map[string]any:
		for k, val := range t {
			if p, bad := findUnrepresentable(val, ptr+"/"+escapeToken(k)); bad {
				return p, true
			}
		}
	case []any:
		for i, val := range t {
			if p, bad := findUnrepresentable(val, ptr+"/"+strconv.Itoa(i)); bad {
				return p, true
			}
		}
	}
	return "", false
}

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	indexRe      = regexp.MustCompile(`^(0|[1-9][0-9]*)$`)
	numberRe     = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)
)

// dataPath converts a JSON pointer into the dotted form used in error bodies:
// "/items/0/first name" becomes ".items[0]['first name']".
func dataPath(ptr string) string {
	if ptr == "" || ptr == "/" {
		return ""
	}
	var b strings.Builder
	for _, tok := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		tok = unescapeToken(tok)
		switch {
		case indexRe.MatchString(tok):
			b.WriteString("[" + tok + "]")
		case identifierRe.MatchString(tok):
			b.WriteString("." + tok)
		default:
			b.WriteString("['" + strings.ReplaceAll(tok, "'", `\'`) + "']")
		}
	}
	return b.String()
}

func escapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~", "~0")
	return strings.ReplaceAll(tok, "/", "~1")
}

func unescapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~1", "/")
	return strings.ReplaceAll(tok, "~0", "~")
}
