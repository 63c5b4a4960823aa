package validation

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/schemagate/pkg/schema"
)

func kinShape(s *openapi3.Schema) *schema.Shape {
	return &schema.Shape{ID: "kin", Ref: openapi3.NewSchemaRef("", s), Dialect: schema.DialectDraft4}
}

func TestOpenAPI3Engine_Check(t *testing.T) {
	t.Parallel()

	obj := openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("tags", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))
	obj.Required = []string{"name"}

	c, err := NewOpenAPI3Engine().Compile(kinShape(obj))
	require.NoError(t, err)

	assert.Nil(t, c.Check(map[string]any{"name": "rex"}))

	vs := c.Check(map[string]any{"tags": []any{"a", 1.0}})
	require.GreaterOrEqual(t, len(vs), 2)
	var paths []string
	for _, v := range vs {
		assert.NotEmpty(t, v.Message)
		paths = append(paths, v.Path)
	}
	assert.Contains(t, paths, ".tags[1]")
}

func TestOpenAPI3Engine_CompileErrors(t *testing.T) {
	t.Parallel()

	engine := NewOpenAPI3Engine()

	_, err := engine.Compile(nil)
	require.Error(t, err)

	_, err = engine.Compile(&schema.Shape{ID: "empty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestPointerPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", pointerPath(nil))
	assert.Equal(t, ".items[0].name", pointerPath([]string{"items", "0", "name"}))
	assert.Equal(t, "['a/b']", pointerPath([]string{"a/b"}))
}
