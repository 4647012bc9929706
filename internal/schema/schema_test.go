package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return New("plan",
		Field{Name: "approach", Kind: KindStringList, Required: true},
		Field{Name: "edge_cases", Kind: KindStringList, Required: true},
		Field{Name: "problem_analysis", Kind: KindString, Required: true},
		Field{Name: "notes", Kind: KindString},
	)
}

func TestValidate(t *testing.T) {
	s := testSchema()

	t.Run("valid object", func(t *testing.T) {
		obj := map[string]any{
			"approach":         []any{"step1"},
			"edge_cases":       []any{},
			"problem_analysis": "simple",
		}
		require.NoError(t, s.Validate(obj))
	})

	t.Run("missing required field", func(t *testing.T) {
		obj := map[string]any{"approach": []any{"step1"}}
		err := s.Validate(obj)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "edge_cases")
	})

	t.Run("wrong kind", func(t *testing.T) {
		obj := map[string]any{
			"approach":         "not a list",
			"edge_cases":       []any{},
			"problem_analysis": "x",
		}
		assert.Error(t, s.Validate(obj))
	})

	t.Run("nil object", func(t *testing.T) {
		assert.Error(t, s.Validate(nil))
	})

	t.Run("unknown fields allowed", func(t *testing.T) {
		obj := map[string]any{
			"approach":         []any{"a"},
			"edge_cases":       []any{},
			"problem_analysis": "x",
			"extra":            42,
		}
		assert.NoError(t, s.Validate(obj))
	})
}

func TestBackfill(t *testing.T) {
	s := testSchema()

	t.Run("fills missing required", func(t *testing.T) {
		obj := map[string]any{"approach": []any{"step1"}}
		out := s.Backfill(obj)
		assert.Equal(t, []any{"step1"}, out["approach"])
		assert.Equal(t, []any{}, out["edge_cases"])
		assert.Equal(t, "", out["problem_analysis"])
	})

	t.Run("idempotent on valid object", func(t *testing.T) {
		obj := map[string]any{
			"approach":         []any{"step1"},
			"edge_cases":       []any{"empty input"},
			"problem_analysis": "analysis",
		}
		out := s.Backfill(obj)
		assert.Equal(t, obj, out)
		assert.Equal(t, out, s.Backfill(out))
	})

	t.Run("does not mutate input", func(t *testing.T) {
		obj := map[string]any{}
		_ = s.Backfill(obj)
		assert.Empty(t, obj)
	})

	t.Run("replaces nil values", func(t *testing.T) {
		obj := map[string]any{"approach": nil}
		out := s.Backfill(obj)
		assert.Equal(t, []any{}, out["approach"])
	})
}

func TestDefaultObject(t *testing.T) {
	s := testSchema()
	obj := s.DefaultObject()

	require.NoError(t, s.Validate(obj))
	assert.Equal(t, []any{}, obj["approach"])
	assert.Equal(t, "", obj["problem_analysis"])
	_, hasOptional := obj["notes"]
	assert.False(t, hasOptional, "optional fields are not defaulted")
}

func TestDefaultValueDeclared(t *testing.T) {
	f := Field{Name: "passed", Kind: KindBool, Required: true, Default: true}
	assert.Equal(t, true, f.DefaultValue())
}

func TestCoverageCount(t *testing.T) {
	s := testSchema()
	assert.Equal(t, 0, s.CoverageCount(map[string]any{}))
	assert.Equal(t, 1, s.CoverageCount(map[string]any{"approach": []any{"a"}}))
	assert.Equal(t, 1, s.CoverageCount(map[string]any{
		"approach":   []any{"a"},
		"edge_cases": "wrong kind",
	}))
}

func TestInstructions(t *testing.T) {
	s := testSchema()
	out := s.Instructions()
	assert.Contains(t, out, `"approach"`)
	assert.Contains(t, out, "(required)")
	assert.Contains(t, out, "Return ONLY valid, complete JSON")
}
