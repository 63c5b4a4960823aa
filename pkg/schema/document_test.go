package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestdata(t *testing.T, name string) *Document {
	t.Helper()
	doc, err := LoadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return doc
}

func TestLoad_Swagger2(t *testing.T) {
	t.Parallel()

	doc := loadTestdata(t, "basic.json")

	assert.Equal(t, "2.0", doc.Version())
	assert.Equal(t, "", doc.BasePath())
	assert.Equal(t, []string{"/", "/status"}, doc.PathOrder())
	require.NotNil(t, doc.OpenAPI().Components)
	assert.Contains(t, doc.OpenAPI().Components.Schemas, "Status")
}

func TestLoad_OpenAPI3YAMLKeepsSourceOrder(t *testing.T) {
	t.Parallel()

	doc := loadTestdata(t, "petstore.yaml")

	assert.Equal(t, "3.0.3", doc.Version())
	assert.Equal(t, "/api", doc.BasePath())
	assert.Equal(t, []string{"/pets", "/pets/{petId}", "/pets/mine", "/files/{name}.{ext}"}, doc.PathOrder())
}

func TestLoad_Swagger2YAMLWithBasePath(t *testing.T) {
	t.Parallel()

	data := []byte(`
swagger: "2.0"
info:
  title: yaml
  version: "1"
basePath: /v1/
produces: [application/json]
paths:
  /items:
    get:
      responses:
        200:
          description: ok
          schema:
            type: array
            items:
              type: string
`)
	doc, err := Load(data)
	require.NoError(t, err)

	assert.Equal(t, "/v1", doc.BasePath())
	assert.Equal(t, []string{"/items"}, doc.PathOrder())
}

func TestLoad_Swagger2CollectionFormats(t *testing.T) {
	t.Parallel()

	data := []byte(`
swagger: "2.0"
info:
  title: formats
  version: "1"
paths:
  /items:
    parameters:
      - {name: shared, in: query, type: array, items: {type: string}}
    get:
      parameters:
        - {name: csv, in: query, type: array, collectionFormat: csv, items: {type: integer}}
        - {name: ssv, in: query, type: array, collectionFormat: ssv, items: {type: integer}}
        - {name: pipes, in: query, type: array, collectionFormat: pipes, items: {type: integer}}
        - {name: multi, in: query, type: array, collectionFormat: multi, items: {type: integer}}
        - {name: one, in: query, type: integer}
      responses:
        200:
          description: ok
`)
	doc, err := Load(data)
	require.NoError(t, err)

	item := doc.OpenAPI().Paths.Value("/items")
	require.NotNil(t, item)
	style := func(params openapi3.Parameters, name string) (string, bool) {
		p := params.GetByInAndName("query", name)
		require.NotNil(t, p, name)
		sm, err := p.SerializationMethod()
		require.NoError(t, err)
		return sm.Style, sm.Explode
	}
	op := item.Get.Parameters

	tests := []struct {
		name    string
		params  openapi3.Parameters
		style   string
		explode bool
	}{
		{name: "shared", params: item.Parameters, style: "form"},
		{name: "csv", params: op, style: "form"},
		{name: "ssv", params: op, style: "spaceDelimited"},
		{name: "pipes", params: op, style: "pipeDelimited"},
		{name: "multi", params: op, style: "form", explode: true},
		{name: "one", params: op, style: "form", explode: true},
	}
	for _, tt := range tests {
		gotStyle, gotExplode := style(tt.params, tt.name)
		assert.Equal(t, tt.style, gotStyle, tt.name)
		assert.Equal(t, tt.explode, gotExplode, tt.name)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: "   "},
		{name: "no version", data: `{"paths": {}}`},
		{name: "unsupported swagger", data: `{"swagger": "1.2", "paths": {}}`},
		{name: "unsupported openapi", data: `{"openapi": "4.0.0", "paths": {}}`},
		{name: "garbage", data: "{not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaParse), "expected ErrSchemaParse, got %v", err)

			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFromOpenAPI_LexicalOrder(t *testing.T) {
	t.Parallel()

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/b", &openapi3.PathItem{}),
			openapi3.WithPath("/a", &openapi3.PathItem{}),
		),
		Servers: openapi3.Servers{{URL: "https://example.com/base/"}},
	}

	doc := FromOpenAPI(spec)

	assert.Equal(t, []string{"/a", "/b"}, doc.PathOrder())
	assert.Equal(t, "/base", doc.BasePath())
	assert.Same(t, spec, doc.OpenAPI())
}

func TestParseError_Message(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := &ParseError{Path: "paths./x", Reason: "bad", Err: cause}

	assert.Equal(t, "schema: paths./x: bad: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrSchemaParse)
}
