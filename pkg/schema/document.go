package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Document is an already-parsed schema document. Swagger 2.0 input is
// converted to OpenAPI 3 on load so the rest of the package only deals with
// one model. A Document is immutable once returned.
type Document struct {
	spec     *openapi3.T
	version  string
	basePath string
	order    []string
	hasPaths bool
}

// LoadOption configures Load and LoadFile.
type LoadOption func(*loadOptions)

type loadOptions struct {
	strict bool
}

// WithStrictValidation runs kin-openapi's full document validation after
// parsing. Documents that fail it are rejected with a ParseError.
func WithStrictValidation() LoadOption {
	return func(o *loadOptions) {
		o.strict = true
	}
}

// docHeader holds the top-level fields needed before choosing a parser.
type docHeader struct {
	Swagger  string `json:"swagger" yaml:"swagger"`
	OpenAPI  string `json:"openapi" yaml:"openapi"`
	BasePath string `json:"basePath" yaml:"basePath"`
}

// LoadFile reads and parses a schema document from a JSON or YAML file.
func LoadFile(path string, opts ...LoadOption) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return Load(data, opts...)
}

// Load parses a Swagger 2.0 or OpenAPI 3.x document from JSON or YAML bytes.
func Load(data []byte, opts ...LoadOption) (*Document, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, parseErrorf("", "document is empty")
	}
	isJSON := data[0] == '{'

	var hdr docHeader
	var err error
	if isJSON {
		err = json.Unmarshal(data, &hdr)
	} else {
		err = yaml.Unmarshal(data, &hdr)
	}
	if err != nil {
		return nil, &ParseError{Reason: "document is not valid JSON or YAML", Err: err}
	}

	var spec *openapi3.T
	switch {
	case hdr.Swagger != "":
		if !strings.HasPrefix(hdr.Swagger, "2.") {
			return nil, parseErrorf("swagger", "unsupported swagger version %q", hdr.Swagger)
		}
		spec, err = loadSwagger2(data, isJSON)
	case hdr.OpenAPI != "":
		if !strings.HasPrefix(hdr.OpenAPI, "3.") {
			return nil, parseErrorf("openapi", "unsupported openapi version %q", hdr.OpenAPI)
		}
		loader := openapi3.NewLoader()
		spec, err = loader.LoadFromData(data)
	default:
		return nil, parseErrorf("", "missing required \"swagger\" or \"openapi\" version field")
	}
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, &ParseError{Reason: "failed to load document", Err: err}
	}

	if o.strict {
		if err := spec.Validate(context.Background()); err != nil {
			return nil, &ParseError{Reason: "document failed validation", Err: err}
		}
	}

	order, hasPaths := pathOrder(data, isJSON)
	doc := &Document{
		spec:     spec,
		version:  hdr.OpenAPI,
		order:    reconcileOrder(order, spec),
		hasPaths: hasPaths,
	}
	if hdr.Swagger != "" {
		doc.version = hdr.Swagger
		doc.basePath = normalizeBasePath(hdr.BasePath)
	} else {
		doc.basePath = serversBasePath(spec.Servers)
	}
	return doc, nil
}

// FromOpenAPI wraps a document that was already loaded with kin-openapi.
// Source order is not available, so path templates register in lexical order.
func FromOpenAPI(spec *openapi3.T) *Document {
	if spec == nil {
		return &Document{spec: &openapi3.T{}}
	}
	return &Document{
		spec:     spec,
		version:  spec.OpenAPI,
		basePath: serversBasePath(spec.Servers),
		order:    reconcileOrder(nil, spec),
		hasPaths: spec.Paths != nil,
	}
}

// OpenAPI returns the underlying OpenAPI 3 model. Callers must not mutate it.
func (d *Document) OpenAPI() *openapi3.T { return d.spec }

// Version returns the declared swagger/openapi version string.
func (d *Document) Version() string { return d.version }

// BasePath returns the path prefix every route is mounted under ("" for none).
func (d *Document) BasePath() string { return d.basePath }

// PathOrder returns the path templates in registration order.
func (d *Document) PathOrder() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

func loadSwagger2(data []byte, isJSON bool) (*openapi3.T, error) {
	raw := data
	if !isJSON {
		var err error
		raw, err = yamlToJSON(data)
		if err != nil {
			return nil, &ParseError{Reason: "invalid YAML", Err: err}
		}
	}

	var doc2 openapi2.T
	if err := json.Unmarshal(raw, &doc2); err != nil {
		return nil, &ParseError{Reason: "invalid swagger 2.0 document", Err: err}
	}

	spec, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return nil, &ParseError{Reason: "failed to convert swagger 2.0 document", Err: err}
	}
	applyCollectionFormats(&doc2, spec)

	loader := openapi3.NewLoader()
	if err := loader.ResolveRefsIn(spec, nil); err != nil {
		return nil, &ParseError{Reason: "failed to resolve references", Err: err}
	}
	return spec, nil
}

// applyCollectionFormats carries collectionFormat of array parameters onto
// the converted parameters as style and explode. The converter drops it.
func applyCollectionFormats(doc2 *openapi2.T, spec *openapi3.T) {
	if spec.Paths == nil {
		return
	}
	for path, item2 := range doc2.Paths {
		item3 := spec.Paths.Value(path)
		if item2 == nil || item3 == nil {
			continue
		}
		setCollectionStyles(item2.Parameters, item3.Parameters)
		for method, op2 := range item2.Operations() {
			if op3 := item3.GetOperation(method); op2 != nil && op3 != nil {
				setCollectionStyles(op2.Parameters, op3.Parameters)
			}
		}
	}
}

func setCollectionStyles(params2 openapi2.Parameters, params3 openapi3.Parameters) {
	for _, p2 := range params2 {
		if p2 == nil || p2.In != openapi3.ParameterInQuery || p2.Type == nil || !p2.Type.Is("array") {
			continue
		}
		p3 := params3.GetByInAndName(p2.In, p2.Name)
		if p3 == nil {
			continue
		}
		explode := false
		switch p2.CollectionFormat {
		case "", "csv":
			p3.Style = openapi3.SerializationForm
		case "ssv":
			p3.Style = openapi3.SerializationSpaceDelimited
		case "pipes":
			p3.Style = openapi3.SerializationPipeDelimited
		case "multi":
			p3.Style, explode = openapi3.SerializationForm, true
		default:
			continue
		}
		p3.Explode = &explode
	}
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(v))
}

// normalizeYAML rewrites map[any]any (produced for non-string keys such as
// unquoted status codes) into map[string]any so it can be JSON encoded.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}

// pathOrder extracts the keys of the top-level "paths" object in source order.
func pathOrder(data []byte, isJSON bool) ([]string, bool) {
	if isJSON {
		var top map[string]json.RawMessage
		if err := json.Unmarshal(data, &top); err != nil {
			return nil, false
		}
		raw, ok := top["paths"]
		if !ok {
			return nil, false
		}
		return jsonObjectKeys(raw), true
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil || len(root.Content) == 0 {
		return nil, false
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, false
	}
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value != "paths" {
			continue
		}
		paths := top.Content[i+1]
		var keys []string
		if paths.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(paths.Content); j += 2 {
				keys = append(keys, paths.Content[j].Value)
			}
		}
		return keys, true
	}
	return nil, false
}

func jsonObjectKeys(raw []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
		keys = append(keys, key)
	}
	return keys
}

// reconcileOrder keeps source order for templates the model knows about and
// appends any the source scan missed in lexical order.
func reconcileOrder(order []string, spec *openapi3.T) []string {
	if spec == nil || spec.Paths == nil {
		return nil
	}
	known := spec.Paths.Map()
	seen := make(map[string]bool, len(known))
	out := make([]string, 0, len(known))
	for _, p := range order {
		if _, ok := known[p]; ok && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	var rest []string
	for p := range known {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func serversBasePath(servers openapi3.Servers) string {
	if len(servers) == 0 || servers[0] == nil {
		return ""
	}
	u, err := url.Parse(servers[0].URL)
	if err != nil {
		return ""
	}
	return normalizeBasePath(u.Path)
}

func normalizeBasePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
