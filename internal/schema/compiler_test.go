package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiler_PrepareAndValidate(t *testing.T) {
	c := NewCompilerWithCache(16)
	ctx := context.Background()

	s := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string"},
			"age":  map[string]interface{}{"type": "number"},
		},
		"required": []string{"name"},
	}

	require.NoError(t, c.Prepare(ctx, s))
	// Second prepare hits the cache.
	require.NoError(t, c.Prepare(ctx, s))

	assert.NoError(t, c.Validate(ctx, s, map[string]interface{}{"name": "sam", "age": 30}))
	assert.Error(t, c.Validate(ctx, s, map[string]interface{}{"age": 30}))
	assert.Error(t, c.Validate(ctx, s, map[string]interface{}{"name": 42}))
}

func TestCompiler_ValidateWithoutPrepare(t *testing.T) {
	c := NewCompilerWithCache(16)
	s := map[string]interface{}{
		"type":     "object",
		"required": []string{"id"},
	}

	// Validate compiles lazily when the schema was never prepared.
	assert.NoError(t, c.Validate(context.Background(), s, map[string]interface{}{"id": "x"}))
	assert.Error(t, c.Validate(context.Background(), s, map[string]interface{}{}))
}

func TestRequestBody_Shape(t *testing.T) {
	c := NewCompilerWithCache(16)
	ctx := context.Background()

	good := map[string]interface{}{
		"technicianTitle": "Plumber",
		"serviceId":       "plumbing",
		"rate":            "120",
		"images": []interface{}{
			map[string]interface{}{"ref": "uploads/leak.jpg", "caption": "under the sink"},
		},
	}
	assert.NoError(t, c.Validate(ctx, RequestBody, good))

	unknownField := map[string]interface{}{"payRate": "120"}
	assert.Error(t, c.Validate(ctx, RequestBody, unknownField))

	wrongType := map[string]interface{}{"rate": 120}
	assert.Error(t, c.Validate(ctx, RequestBody, wrongType))

	imageWithoutRef := map[string]interface{}{
		"images": []interface{}{map[string]interface{}{"caption": "no ref"}},
	}
	assert.Error(t, c.Validate(ctx, RequestBody, imageWithoutRef))
}
