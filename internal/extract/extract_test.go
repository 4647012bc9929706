package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFencedBlock(t *testing.T) {
	text := "Sure! Here's the plan:\n```json\n{\"approach\": [\"step1\"]}\n```"
	res := Extract(text)

	require.True(t, res.OK)
	assert.Equal(t, StrategyFenced, res.Strategy)
	assert.Equal(t, []any{"step1"}, res.Object["approach"])
}

func TestExtractFirstParseableFencedBlockWins(t *testing.T) {
	text := "```json\nnot json at all\n```\nand then\n```json\n{\"a\": 1}\n```"
	res := Extract(text)

	require.True(t, res.OK)
	assert.Equal(t, StrategyFenced, res.Strategy)
	assert.Equal(t, float64(1), res.Object["a"])
}

func TestExtractBalancedSpan(t *testing.T) {
	text := `The result is {"plan": {"steps": ["a", "b"]}} as requested.`
	res := Extract(text)

	require.True(t, res.OK)
	assert.Equal(t, StrategyBalanced, res.Strategy)
	nested, ok := res.Object["plan"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, nested["steps"])
}

func TestExtractRepair(t *testing.T) {
	text := `{approach: [step1], 'notes': 'fine',}`
	res := Extract(text)

	require.True(t, res.OK)
	assert.Equal(t, StrategyRepair, res.Strategy)
	assert.Equal(t, []any{"step1"}, res.Object["approach"])
	assert.Equal(t, "fine", res.Object["notes"])
}

func TestExtractLineWindow(t *testing.T) {
	// A broken leading brace keeps the balanced scan and repair from
	// succeeding on the full text, but a later chunk holds a clean object.
	text := "{ oops \" unterminated\nprose line\n{\"key\": \"value\"}\ntrailing prose"
	res := Extract(text)

	require.True(t, res.OK)
	assert.Equal(t, StrategyLineWindow, res.Strategy)
	assert.Equal(t, "value", res.Object["key"])
}

func TestExtractFailures(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"whitespace":       "   \n\t  ",
		"pure prose":       "I could not produce a plan for this problem, sorry.",
		"unbalanced":       "{\"a\": {\"b\": 1}",
		"array not object": "[1, 2, 3]",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			res := Extract(text)
			assert.False(t, res.OK)
			assert.Equal(t, StrategyNone, res.Strategy)
			assert.NotNil(t, res.Object)
			assert.Empty(t, res.Object)
		})
	}
}

func TestExtractTotality(t *testing.T) {
	// Deliberately hostile inputs must neither panic nor hang.
	inputs := []string{
		strings.Repeat("{", 5000),
		strings.Repeat("}{", 5000),
		"```json\n" + strings.Repeat("x", 10000),
		"{\"a\": \"" + strings.Repeat("\\", 999) + "\"}",
		"{'a': '" + strings.Repeat("\n", 200) + "'}",
	}
	for _, text := range inputs {
		res := Extract(text)
		assert.NotNil(t, res.Object)
	}
}

func TestRepairTransforms(t *testing.T) {
	t.Run("strip trailing commas", func(t *testing.T) {
		assert.Equal(t, `{"a": [1, 2]}`, stripTrailingCommas(`{"a": [1, 2,],}`))
	})

	t.Run("quote unquoted keys", func(t *testing.T) {
		assert.Equal(t, `{"a": 1, "b": 2}`, quoteUnquotedKeys(`{a: 1, b: 2}`))
	})

	t.Run("single quotes", func(t *testing.T) {
		assert.Equal(t, `{"a": "it \"x\""}`, normalizeSingleQuotes(`{'a': 'it "x"'}`))
	})

	t.Run("bare values", func(t *testing.T) {
		assert.Equal(t, `{"a": ["x", "y"]}`, quoteBareValues(`{"a": [x, y]}`))
	})

	t.Run("bare values keep literals", func(t *testing.T) {
		assert.Equal(t, `{"a": true, "b": null}`, quoteBareValues(`{"a": true, "b": null}`))
	})

	t.Run("escape control chars in strings", func(t *testing.T) {
		assert.Equal(t, "{\"a\": \"line\\nnext\"}", escapeControlChars("{\"a\": \"line\nnext\"}"))
	})

	t.Run("control chars outside strings untouched", func(t *testing.T) {
		assert.Equal(t, "{\n\"a\": 1\n}", escapeControlChars("{\n\"a\": 1\n}"))
	})
}

func TestBalancedSpan(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, balancedSpan(`junk {"a": 1} junk {"b": 2}`))
	assert.Equal(t, "", balancedSpan("no braces here"))
	assert.Equal(t, "", balancedSpan("}}} only closers"))
}
