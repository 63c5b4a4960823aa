package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"

	"github.com/getmockd/schemagate/pkg/schema"
)

// Parameters and form bodies are split by the kin-openapi form decoders,
// which honour style and explode, against a copy of the declared schema
// whose leaves are all strings. The leaves are then converted against the
// declared schema. Conversion is strict: a value that is not a JSON number
// stays a string, so the engine reports a type mismatch instead of the
// decoder accepting "NaN" or "0x10".

const (
	mediaFormURLEncoded = "application/x-www-form-urlencoded"
	mediaMultipartForm  = "multipart/form-data"
)

var (
	errInvalidJSONRequest = errors.New("request body is not valid JSON")
	errInvalidForm        = errors.New("request body is not valid form data")
	errInvalidMultipart   = errors.New("request body is not valid multipart data")
)

// paramValues collects the declared parameters of one location into the
// object their shape validates. Absent optional parameters are left out so
// "required" is the only rule that fires for them.
func (g *Gate) paramValues(r *http.Request, match *schema.Match, set *schema.ParamSet) map[string]any {
	var query url.Values
	if set.Location == schema.LocationQuery {
		query = r.URL.Query()
	}
	out := make(map[string]any, len(set.Params))
	for _, p := range set.Params {
		if v, ok := paramValue(r, match, query, p); ok {
			out[p.Name] = v
		}
	}
	return out
}

func paramValue(r *http.Request, match *schema.Match, query url.Values, p schema.Param) (any, bool) {
	s := paramSchema(p)
	if p.Type == "object" && s != nil {
		return objectParam(r, match, query, p, s)
	}

	style, explode := p.Style, p.Explode
	var raw []string
	switch p.In {
	case schema.LocationQuery:
		raw = query[p.Name]
	case schema.LocationPath:
		v, ok := match.Params[p.Name]
		if !ok {
			return nil, false
		}
		// Path and header values are comma separated like form with
		// explode off once label and matrix prefixes are removed.
		raw, style, explode = []string{unstyle(v, p)}, openapi3.SerializationForm, false
	case schema.LocationHeader:
		vs := r.Header.Values(p.Name)
		if len(vs) == 0 {
			return nil, false
		}
		raw, style, explode = []string{strings.Join(vs, ",")}, openapi3.SerializationForm, false
	}
	if len(raw) == 0 {
		return nil, false
	}
	if style == "" {
		style = openapi3.SerializationForm
	}
	return coerceValue(decodeStyled(p.Name, raw, s, style, explode), s), true
}

func paramSchema(p schema.Param) *openapi3.Schema {
	if p.Schema == nil {
		return nil
	}
	return p.Schema.Value
}

// decodeStyled splits the raw values of one primitive or array parameter.
func decodeStyled(name string, raw []string, s *openapi3.Schema, style string, explode bool) any {
	prop := stringProjection(s)
	obj := openapi3.NewObjectSchema().WithProperty(name, prop)
	enc := &openapi3.Encoding{Style: style, Explode: &explode}
	encFn := func(string) *openapi3.Encoding { return enc }

	body := url.Values{name: raw}.Encode()
	v, err := openapi3filter.UrlencodedBodyDecoder(strings.NewReader(body), nil, openapi3.NewSchemaRef("", obj), encFn)
	if m, ok := v.(map[string]any); err == nil && ok && m[name] != nil {
		return m[name]
	}
	// Empty items decode to nil, keep them as empty strings.
	return rawField(raw, prop, style, explode)
}

func rawField(raw []string, prop *openapi3.Schema, style string, explode bool) any {
	if !prop.Type.Is("array") {
		return raw[0]
	}
	if !explode {
		raw = strings.Split(raw[0], styleDelimiter(style))
	}
	items := make([]any, len(raw))
	for i, v := range raw {
		items[i] = v
	}
	return items
}

func styleDelimiter(style string) string {
	switch style {
	case openapi3.SerializationSpaceDelimited:
		return " "
	case openapi3.SerializationPipeDelimited:
		return "|"
	}
	return ","
}

// unstyle strips the label and matrix prefixes of a path value and returns
// the comma separated remainder.
func unstyle(v string, p schema.Param) string {
	switch p.Style {
	case openapi3.SerializationLabel:
		v = strings.TrimPrefix(v, ".")
		if p.Explode {
			v = strings.ReplaceAll(v, ".", ",")
		}
	case openapi3.SerializationMatrix:
		if !p.Explode {
			return strings.TrimPrefix(v, ";"+p.Name+"=")
		}
		parts := strings.Split(strings.TrimPrefix(v, ";"), ";")
		for i, part := range parts {
			parts[i] = strings.TrimPrefix(part, p.Name+"=")
		}
		v = strings.Join(parts, ",")
	}
	return v
}

// objectParam decodes an object parameter. The form decoders only split
// primitives and arrays, so objects are assembled here.
func objectParam(r *http.Request, match *schema.Match, query url.Values, p schema.Param, s *openapi3.Schema) (any, bool) {
	props := make(map[string]string)
	switch {
	case p.In == schema.LocationQuery && p.Style == openapi3.SerializationDeepObject:
		prefix := p.Name + "["
		for key, vs := range query {
			if strings.HasPrefix(key, prefix) && strings.HasSuffix(key, "]") && len(vs) > 0 {
				props[key[len(prefix):len(key)-1]] = vs[0]
			}
		}
	case p.In == schema.LocationQuery && p.Explode:
		for name := range s.Properties {
			if vs := query[name]; len(vs) > 0 {
				props[name] = vs[0]
			}
		}
	default:
		var raw string
		switch p.In {
		case schema.LocationQuery:
			vs := query[p.Name]
			if len(vs) == 0 {
				return nil, false
			}
			raw = vs[0]
		case schema.LocationPath:
			v, ok := match.Params[p.Name]
			if !ok {
				return nil, false
			}
			raw = unstyle(v, p)
		case schema.LocationHeader:
			vs := r.Header.Values(p.Name)
			if len(vs) == 0 {
				return nil, false
			}
			raw = strings.Join(vs, ",")
		}
		props = splitPairs(raw, p.Explode && p.In != schema.LocationQuery)
	}
	if len(props) == 0 {
		return nil, false
	}

	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = coerceValue(v, propertySchema(s, k))
	}
	return out, true
}

// splitPairs reads "k,v,k2,v2", or "k=v,k2=v2" when named is set.
func splitPairs(raw string, named bool) map[string]string {
	out := make(map[string]string)
	if raw == "" {
		return out
	}
	parts := strings.Split(raw, ",")
	if named {
		for _, part := range parts {
			k, v, _ := strings.Cut(part, "=")
			out[k] = v
		}
		return out
	}
	for i := 0; i+1 < len(parts); i += 2 {
		out[parts[i]] = parts[i+1]
	}
	return out
}

func decodeRequestBody(body []byte, contentType string, req *schema.RequestShape, shape *schema.Shape) (any, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if contentType == "" || err != nil {
		mt = ""
	}
	mt = strings.ToLower(mt)

	switch {
	case mt == "" || schema.IsJSONMediaType(mt):
		v, err := decodeJSON(body)
		if err != nil {
			return nil, errInvalidJSONRequest
		}
		return v, nil
	case mt == mediaFormURLEncoded || mt == mediaMultipartForm:
		return decodeFormBody(body, contentType, mt, shape)
	case strings.HasPrefix(mt, "text/") || declares(req, mt):
		return openapi3filter.PlainBodyDecoder(bytes.NewReader(body), nil, nil, nil)
	}
	return nil, fmt.Errorf("unsupported content type %s", mt)
}

func shapeSchema(s *schema.Shape) *openapi3.Schema {
	if s == nil || s.Ref == nil {
		return nil
	}
	return s.Ref.Value
}

// decodeFormBody decodes an urlencoded or multipart body into an object.
// Fields the schema does not declare are kept as strings so
// additionalProperties still applies to them.
func decodeFormBody(body []byte, contentType, mt string, shape *schema.Shape) (any, error) {
	declared := shapeSchema(shape)
	proj := formProjection(declared)
	header := http.Header{"Content-Type": {contentType}}
	var encFn openapi3filter.EncodingFn
	if shape != nil && len(shape.Encoding) > 0 {
		encFn = func(name string) *openapi3.Encoding { return shape.Encoding[name] }
	}

	var (
		raw     url.Values
		decoded any
		err     error
	)
	if mt == mediaFormURLEncoded {
		if raw, err = url.ParseQuery(string(body)); err != nil {
			return nil, errInvalidForm
		}
		if decoded, err = openapi3filter.UrlencodedBodyDecoder(bytes.NewReader(body), header, proj, encFn); err != nil {
			return nil, errInvalidForm
		}
	} else {
		if raw, err = multipartFields(body, contentType); err != nil {
			return nil, errInvalidMultipart
		}
		if decoded, err = openapi3filter.MultipartBodyDecoder(bytes.NewReader(body), header, proj, encFn); err != nil {
			return nil, errInvalidMultipart
		}
	}

	obj, _ := decoded.(map[string]any)
	out := make(map[string]any, len(raw))
	for name, vs := range raw {
		if len(vs) == 0 {
			continue
		}
		val := obj[name]
		if val == nil {
			prop := openapi3.NewStringSchema()
			if ref := proj.Value.Properties[name]; ref != nil {
				prop = ref.Value
			}
			style, explode := openapi3.SerializationForm, true
			if enc := shapeEncoding(shape, name); enc != nil {
				sm := enc.SerializationMethod()
				style, explode = sm.Style, sm.Explode
			}
			val = rawField(vs, prop, style, explode)
		}
		out[name] = coerceValue(val, propertySchema(declared, name))
	}
	return out, nil
}

func shapeEncoding(shape *schema.Shape, name string) *openapi3.Encoding {
	if shape == nil {
		return nil
	}
	return shape.Encoding[name]
}

// multipartFields lists every part by name with its content as text.
func multipartFields(body []byte, contentType string) (url.Values, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, err
	}
	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	out := url.Values{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, err
		}
		out.Add(part.FormName(), string(data))
	}
}

// formProjection flattens the properties of s, including those of its
// combinators, into an object whose leaves are strings.
func formProjection(s *openapi3.Schema) *openapi3.SchemaRef {
	out := openapi3.NewObjectSchema()
	collectProperties(s, out.Properties)
	allow := true
	out.AdditionalProperties = openapi3.AdditionalProperties{Has: &allow}
	return openapi3.NewSchemaRef("", out)
}

func collectProperties(s *openapi3.Schema, into openapi3.Schemas) {
	if s == nil {
		return
	}
	for name, prop := range s.Properties {
		if _, seen := into[name]; !seen && prop != nil {
			into[name] = openapi3.NewSchemaRef("", stringProjection(prop.Value))
		}
	}
	for _, list := range []openapi3.SchemaRefs{s.AllOf, s.AnyOf, s.OneOf} {
		for _, ref := range list {
			if ref != nil {
				collectProperties(ref.Value, into)
			}
		}
	}
}

// stringProjection keeps the array-ness and format of s and makes every
// leaf a string.
func stringProjection(s *openapi3.Schema) *openapi3.Schema {
	if schema.PrimaryType(s) == "array" {
		item := openapi3.NewStringSchema()
		if s.Items != nil && s.Items.Value != nil {
			item.Format = s.Items.Value.Format
		}
		return openapi3.NewArraySchema().WithItems(item)
	}
	out := openapi3.NewStringSchema()
	if s != nil {
		out.Format = s.Format
	}
	return out
}

// propertySchema finds the schema of a named property of s, looking
// through combinators and additionalProperties.
func propertySchema(s *openapi3.Schema, name string) *openapi3.Schema {
	if s == nil {
		return nil
	}
	if prop, ok := s.Properties[name]; ok && prop != nil {
		return prop.Value
	}
	for _, list := range []openapi3.SchemaRefs{s.AllOf, s.AnyOf, s.OneOf} {
		for _, ref := range list {
			if ref == nil {
				continue
			}
			if found := propertySchema(ref.Value, name); found != nil {
				return found
			}
		}
	}
	if ap := s.AdditionalProperties.Schema; ap != nil {
		return ap.Value
	}
	return nil
}

// coerceValue converts decoded string leaves to the type s declares.
// Objects are returned unchanged since only JSON parts produce them.
func coerceValue(v any, s *openapi3.Schema) any {
	if s == nil {
		return v
	}
	switch t := v.(type) {
	case string:
		return coerceScalar(t, schema.PrimaryType(s))
	case []any:
		var items *openapi3.Schema
		if s.Items != nil {
			items = s.Items.Value
		}
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = coerceValue(item, items)
		}
		return out
	}
	return v
}

// coerceScalar converts one raw string. Numbers must be written the way
// JSON writes them, so "NaN", "Inf" and "0x10" stay strings.
func coerceScalar(v, typ string) any {
	switch typ {
	case "integer", "number":
		if validNumber(v) {
			return json.Number(v)
		}
	case "boolean":
		switch v {
		case "true":
			return true
		case "false":
			return false
		}
	case "null":
		if v == "" {
			return nil
		}
	}
	return v
}

func declares(req *schema.RequestShape, mt string) bool {
	for key := range req.Body {
		if strings.EqualFold(key, mt) {
			return true
		}
	}
	return false
}
