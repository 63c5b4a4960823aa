package schema

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Dialect identifies the JSON Schema draft a shape is written in.
type Dialect string

// Supported dialects. OpenAPI 3.0 and Swagger 2.0 schemas are draft-04
// supersets; OpenAPI 3.1 schemas are draft 2020-12.
const (
	DialectDraft4  Dialect = "draft4"
	Dialect2020_12 Dialect = "2020-12"
)

// Parameter locations that are validated.
const (
	LocationPath   = "path"
	LocationQuery  = "query"
	LocationHeader = "header"
)

// Shape is one schema fragment of the document.
type Shape struct {
	// ID identifies the shape in logs and metrics,
	// e.g. "GET /status response 200 application/json".
	ID string

	// Ref is the kin-openapi schema with references resolved.
	Ref *openapi3.SchemaRef

	// Raw is a self-contained JSON rendering of the fragment. Local
	// references resolve because components.schemas is embedded next to it.
	Raw json.RawMessage

	// Dialect is the JSON Schema draft the fragment follows.
	Dialect Dialect

	// Encoding holds the per-property encodings of a form media type.
	Encoding map[string]*openapi3.Encoding
}

// Param describes one declared parameter.
type Param struct {
	Name     string
	In       string
	Required bool
	// Type is the declared JSON type used to coerce the raw string value
	// ("integer", "number", "boolean", "array", ...). Empty when untyped.
	Type string
	// ItemType is the element type when Type is "array".
	ItemType string
	// Style and Explode describe how the value is serialized, with the
	// defaults of its location applied.
	Style   string
	Explode bool
	// Schema is the declared schema with references resolved.
	Schema *openapi3.SchemaRef
}

// ParamSet is every parameter of one location plus an object shape over them.
type ParamSet struct {
	Location string
	Params   []Param
	Shape    *Shape
}

// RequestShape is the expected request of an operation.
type RequestShape struct {
	// Params holds one set per location, ordered path, query, header.
	Params []*ParamSet

	// Body maps media types to body shapes.
	Body map[string]*Shape

	// BodyRequired reports whether a request body must be present.
	BodyRequired bool

	bodyTypes []string
}

// HasBody reports whether the operation declares a request body.
func (r *RequestShape) HasBody() bool {
	return len(r.Body) > 0 || r.BodyRequired
}

// BodyFor returns the body shape for a request content type.
func (r *RequestShape) BodyFor(contentType string) *Shape {
	return selectMedia(r.Body, r.bodyTypes, contentType)
}

// ResponseShape is the expected response for one status key.
type ResponseShape struct {
	Status  string
	Content map[string]*Shape

	mediaTypes []string
}

// ShapeFor returns the body shape for a response content type. When the
// content type is not declared the JSON entry (or the only entry) is used, so
// a handler answering with an undeclared representation is still checked.
func (r *ResponseShape) ShapeFor(contentType string) *Shape {
	return selectMedia(r.Content, r.mediaTypes, contentType)
}

// RouteEntry is the schema for one (path template, method) pair.
type RouteEntry struct {
	PathTemplate string
	Method       string
	OperationID  string

	// Request is nil when the operation declares no parameters and no body.
	Request *RequestShape

	// Responses is keyed by status code, range key ("2XX") or "default".
	Responses map[string]*ResponseShape
}

// Response returns the response shape for an actual status code: the exact
// code first, then the range key, then "default". Nil means unvalidated.
func (e *RouteEntry) Response(status int) *ResponseShape {
	code := strconv.Itoa(status)
	if r, ok := e.Responses[code]; ok {
		return r
	}
	if len(code) == 3 {
		if r, ok := e.Responses[code[:1]+"XX"]; ok {
			return r
		}
	}
	return e.Responses["default"]
}

// String returns "METHOD /template".
func (e *RouteEntry) String() string {
	return e.Method + " " + e.PathTemplate
}

// Index is the read-only lookup structure built from a Document. It is safe
// for concurrent use.
type Index struct {
	doc     *Document
	matcher *Matcher
	entries []*RouteEntry
	shapes  []*Shape
}

// Lookup resolves an actual request path and method to a route entry.
func (i *Index) Lookup(path, method string) (*Match, bool) {
	return i.matcher.Match(path, method)
}

// Entries returns the indexed entries in registration order.
func (i *Index) Entries() []*RouteEntry {
	out := make([]*RouteEntry, len(i.entries))
	copy(out, i.entries)
	return out
}

// Shapes returns every schema fragment referenced by the index.
func (i *Index) Shapes() []*Shape {
	out := make([]*Shape, len(i.shapes))
	copy(out, i.shapes)
	return out
}

// Document returns the document the index was built from.
func (i *Index) Document() *Document { return i.doc }

var methodOrder = []string{
	http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete,
	http.MethodOptions, http.MethodHead, http.MethodPatch, http.MethodTrace,
}

// Build indexes a document. It fails with a *ParseError when required
// sections are missing or a path template is malformed.
func Build(doc *Document) (*Index, error) {
	if doc == nil || doc.spec == nil {
		return nil, parseErrorf("", "document is nil")
	}
	if !doc.hasPaths || doc.spec.Paths == nil {
		return nil, parseErrorf("paths", "missing required section")
	}

	b := &builder{dialect: dialectFor(doc.version)}
	if err := b.renderComponents(doc.spec); err != nil {
		return nil, err
	}

	idx := &Index{doc: doc, matcher: newMatcher(doc.basePath)}
	items := doc.spec.Paths.Map()
	for _, tmpl := range doc.order {
		item := items[tmpl]
		if item == nil {
			continue
		}
		ops := item.Operations()
		for _, method := range methodOrder {
			op := ops[method]
			if op == nil {
				continue
			}
			entry, err := b.entry(tmpl, method, item, op)
			if err != nil {
				return nil, err
			}
			if err := idx.matcher.add(entry); err != nil {
				return nil, err
			}
			idx.entries = append(idx.entries, entry)
		}
	}
	idx.shapes = b.shapes
	return idx, nil
}

func dialectFor(version string) Dialect {
	if strings.HasPrefix(version, "3.1") {
		return Dialect2020_12
	}
	return DialectDraft4
}

type builder struct {
	dialect    Dialect
	components map[string]any
	shapes     []*Shape
}

func (b *builder) renderComponents(spec *openapi3.T) error {
	if spec.Components == nil || len(spec.Components.Schemas) == 0 {
		return nil
	}
	raw, err := json.Marshal(spec.Components.Schemas)
	if err != nil {
		return &ParseError{Path: "components.schemas", Reason: "cannot render schemas", Err: err}
	}
	if err := json.Unmarshal(raw, &b.components); err != nil {
		return &ParseError{Path: "components.schemas", Reason: "cannot render schemas", Err: err}
	}
	return nil
}

func (b *builder) entry(tmpl, method string, item *openapi3.PathItem, op *openapi3.Operation) (*RouteEntry, error) {
	loc := "paths." + tmpl + "." + strings.ToLower(method)
	if op.Responses == nil || len(op.Responses.Map()) == 0 {
		return nil, parseErrorf(loc, "missing required responses section")
	}

	entry := &RouteEntry{
		PathTemplate: tmpl,
		Method:       method,
		OperationID:  op.OperationID,
		Responses:    make(map[string]*ResponseShape),
	}

	req, err := b.request(entry, item, op)
	if err != nil {
		return nil, err
	}
	entry.Request = req

	responses := op.Responses.Map()
	codes := make([]string, 0, len(responses))
	for code := range responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		ref := responses[code]
		if ref == nil || ref.Value == nil {
			continue
		}
		key := normalizeStatusKey(code)
		rs := &ResponseShape{Status: key, Content: make(map[string]*Shape)}
		for _, mt := range sortedMedia(ref.Value.Content) {
			media := ref.Value.Content[mt]
			if media == nil || media.Schema == nil {
				continue
			}
			s, err := b.shape(fmt.Sprintf("%s response %s %s", entry, key, mt), media.Schema)
			if err != nil {
				return nil, err
			}
			rs.Content[mt] = s
			rs.mediaTypes = append(rs.mediaTypes, mt)
		}
		entry.Responses[key] = rs
	}
	return entry, nil
}

func (b *builder) request(entry *RouteEntry, item *openapi3.PathItem, op *openapi3.Operation) (*RequestShape, error) {
	req := &RequestShape{Body: make(map[string]*Shape)}

	params := mergeParams(item.Parameters, op.Parameters)
	for _, in := range []string{LocationPath, LocationQuery, LocationHeader} {
		set, err := b.paramSet(entry, in, params)
		if err != nil {
			return nil, err
		}
		if set != nil {
			req.Params = append(req.Params, set)
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		body := op.RequestBody.Value
		req.BodyRequired = body.Required
		for _, mt := range sortedMedia(body.Content) {
			media := body.Content[mt]
			if media == nil || media.Schema == nil {
				continue
			}
			s, err := b.shape(fmt.Sprintf("%s request body %s", entry, mt), media.Schema)
			if err != nil {
				return nil, err
			}
			s.Encoding = media.Encoding
			req.Body[mt] = s
			req.bodyTypes = append(req.bodyTypes, mt)
		}
	}

	if len(req.Params) == 0 && !req.HasBody() {
		return nil, nil
	}
	return req, nil
}

// mergeParams applies operation parameters over path-item parameters.
func mergeParams(common, own openapi3.Parameters) []*openapi3.Parameter {
	var out []*openapi3.Parameter
	index := make(map[string]int)
	for _, list := range []openapi3.Parameters{common, own} {
		for _, ref := range list {
			if ref == nil || ref.Value == nil {
				continue
			}
			p := ref.Value
			key := p.In + ":" + p.Name
			if i, ok := index[key]; ok {
				out[i] = p
				continue
			}
			index[key] = len(out)
			out = append(out, p)
		}
	}
	return out
}

func (b *builder) paramSet(entry *RouteEntry, in string, params []*openapi3.Parameter) (*ParamSet, error) {
	set := &ParamSet{Location: in}
	obj := openapi3.NewObjectSchema()
	obj.Properties = make(openapi3.Schemas)

	for _, p := range params {
		if p.In != in {
			continue
		}
		ref := p.Schema
		if ref == nil {
			for _, mt := range sortedMedia(p.Content) {
				if p.Content[mt] != nil && p.Content[mt].Schema != nil {
					ref = p.Content[mt].Schema
					break
				}
			}
		}
		if ref == nil {
			ref = openapi3.NewSchemaRef("", &openapi3.Schema{})
		}

		param := Param{Name: p.Name, In: in, Required: p.Required || in == LocationPath, Schema: ref}
		param.Type, param.ItemType = typeHints(ref.Value)
		if sm, err := p.SerializationMethod(); err == nil {
			param.Style, param.Explode = sm.Style, sm.Explode
		}
		obj.Properties[p.Name] = ref
		if param.Required {
			obj.Required = append(obj.Required, p.Name)
		}
		set.Params = append(set.Params, param)
	}
	if len(set.Params) == 0 {
		return nil, nil
	}

	s, err := b.shape(fmt.Sprintf("%s request %s", entry, in), openapi3.NewSchemaRef("", obj))
	if err != nil {
		return nil, err
	}
	set.Shape = s
	return set, nil
}

func (b *builder) shape(id string, ref *openapi3.SchemaRef) (*Shape, error) {
	raw, err := json.Marshal(ref)
	if err != nil {
		return nil, &ParseError{Path: id, Reason: "cannot render schema", Err: err}
	}
	var frag any
	if err := json.Unmarshal(raw, &frag); err != nil {
		return nil, &ParseError{Path: id, Reason: "cannot render schema", Err: err}
	}
	if m, ok := frag.(map[string]any); ok && len(b.components) > 0 {
		if _, taken := m["components"]; !taken {
			m["components"] = map[string]any{"schemas": b.components}
		}
		if raw, err = json.Marshal(m); err != nil {
			return nil, &ParseError{Path: id, Reason: "cannot render schema", Err: err}
		}
	}
	s := &Shape{ID: id, Ref: ref, Raw: raw, Dialect: b.dialect}
	b.shapes = append(b.shapes, s)
	return s, nil
}

func typeHints(s *openapi3.Schema) (string, string) {
	t := PrimaryType(s)
	if t == "array" && s.Items != nil {
		return t, PrimaryType(s.Items.Value)
	}
	return t, ""
}

// PrimaryType returns the first non-null type s declares, or "".
func PrimaryType(s *openapi3.Schema) string {
	if s == nil || s.Type == nil {
		return ""
	}
	for _, t := range *s.Type {
		if t != "null" {
			return t
		}
	}
	return ""
}

func normalizeStatusKey(code string) string {
	if strings.EqualFold(code, "default") {
		return "default"
	}
	return strings.ToUpper(code)
}

func sortedMedia(content openapi3.Content) []string {
	out := make([]string, 0, len(content))
	for mt := range content {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

// selectMedia picks the shape for a content type: exact match, then
// "type/*", then "*/*", then the JSON entry, then the only entry.
func selectMedia(shapes map[string]*Shape, order []string, contentType string) *Shape {
	if len(shapes) == 0 {
		return nil
	}
	mt := ""
	if contentType != "" {
		if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
			mt = parsed
		}
	}
	if mt != "" {
		for _, key := range order {
			if strings.EqualFold(key, mt) {
				return shapes[key]
			}
		}
		if slash := strings.IndexByte(mt, '/'); slash > 0 {
			if s, ok := shapes[mt[:slash]+"/*"]; ok {
				return s
			}
		}
		if s, ok := shapes["*/*"]; ok {
			return s
		}
	}
	for _, key := range order {
		if IsJSONMediaType(key) {
			return shapes[key]
		}
	}
	return shapes[order[0]]
}

// IsJSONMediaType reports whether a media type carries JSON
// ("application/json" or any "+json" suffix type).
func IsJSONMediaType(mt string) bool {
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	mt = strings.ToLower(mt)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
