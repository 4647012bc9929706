package schemacall

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderforge/solverd/internal/backend"
	"github.com/coderforge/solverd/internal/extract"
	"github.com/coderforge/solverd/internal/schema"
)

// scriptedInvoker replays a fixed list of responses, then errors.
type scriptedInvoker struct {
	responses []*backend.Response
	errs      []error
	calls     int
	prompts   []string
}

func (s *scriptedInvoker) Invoke(_ context.Context, prompt string, _ *schema.Schema) (*backend.Response, error) {
	s.prompts = append(s.prompts, prompt)
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return nil, fmt.Errorf("no scripted response for call %d", i)
}

func planSchema() *schema.Schema {
	return schema.New("plan",
		schema.Field{Name: "approach", Kind: schema.KindStringList, Required: true},
		schema.Field{Name: "edge_cases", Kind: schema.KindStringList, Required: true},
	)
}

func TestCallFencedText(t *testing.T) {
	inv := &scriptedInvoker{responses: []*backend.Response{
		{Text: "Sure! Here's the plan:\n```json\n{\"approach\": [\"step1\"]}\n```"},
	}}
	caller := New(inv, nil)

	artifact := caller.Call(context.Background(), "plan it", planSchema())

	require.NotNil(t, artifact)
	assert.False(t, artifact.Degraded)
	assert.Equal(t, extract.StrategyFenced, artifact.Strategy)
	assert.Equal(t, []any{"step1"}, artifact.Fields["approach"])
	assert.Equal(t, []any{}, artifact.Fields["edge_cases"])
	assert.Equal(t, 1, inv.calls)
}

func TestCallRepairedText(t *testing.T) {
	inv := &scriptedInvoker{responses: []*backend.Response{
		{Text: "{approach: [step1], 'notes': 'fine',}"},
	}}
	caller := New(inv, nil)

	artifact := caller.Call(context.Background(), "plan it", planSchema())

	require.NotNil(t, artifact)
	assert.False(t, artifact.Degraded)
	assert.Equal(t, extract.StrategyRepair, artifact.Strategy)
	assert.Equal(t, []any{"step1"}, artifact.Fields["approach"])
	assert.Equal(t, []any{}, artifact.Fields["edge_cases"])
}

func TestCallNativeObject(t *testing.T) {
	inv := &scriptedInvoker{responses: []*backend.Response{
		{Object: map[string]any{"approach": []any{"a"}, "edge_cases": []any{"b"}}},
	}}
	caller := New(inv, nil)

	artifact := caller.Call(context.Background(), "plan it", planSchema())

	assert.Equal(t, StrategyNative, artifact.Strategy)
	assert.Equal(t, []any{"a"}, artifact.Fields["approach"])
	assert.Equal(t, []any{"b"}, artifact.Fields["edge_cases"])
}

func TestCallReformulatesOnce(t *testing.T) {
	inv := &scriptedInvoker{responses: []*backend.Response{
		{Text: "I would rather chat about the weather."},
		{Text: `{"approach": ["retry worked"]}`},
	}}
	caller := New(inv, nil)

	artifact := caller.Call(context.Background(), "plan it", planSchema())

	require.Equal(t, 2, inv.calls)
	assert.Contains(t, inv.prompts[1], "Return ONLY valid, complete JSON")
	assert.False(t, artifact.Degraded)
	assert.Equal(t, []any{"retry worked"}, artifact.Fields["approach"])
}

func TestCallDegradedDefaults(t *testing.T) {
	inv := &scriptedInvoker{responses: []*backend.Response{
		{Text: "pure prose, no structure"},
		{Text: "still pure prose"},
	}}
	caller := New(inv, nil)

	artifact := caller.Call(context.Background(), "plan it", planSchema())

	require.NotNil(t, artifact)
	assert.True(t, artifact.Degraded)
	assert.Equal(t, extract.StrategyNone, artifact.Strategy)
	assert.Equal(t, []any{}, artifact.Fields["approach"])
	assert.Equal(t, []any{}, artifact.Fields["edge_cases"])
	assert.Equal(t, 2, inv.calls)
}

func TestCallNonNullityAgainstFailingBackend(t *testing.T) {
	inv := &scriptedInvoker{errs: []error{
		fmt.Errorf("connection refused"),
		fmt.Errorf("connection refused"),
	}}
	caller := New(inv, nil)

	s := schema.New("code",
		schema.Field{Name: "code", Kind: schema.KindString, Required: true},
		schema.Field{Name: "libraries", Kind: schema.KindStringList, Required: true},
		schema.Field{Name: "file_structure", Kind: schema.KindObject, Required: true},
	)
	artifact := caller.Call(context.Background(), "generate", s)

	require.NotNil(t, artifact)
	assert.True(t, artifact.Degraded)
	assert.Equal(t, 2, artifact.TransportFailures)
	for _, f := range s.Required() {
		v, ok := artifact.Fields[f.Name]
		assert.True(t, ok, "required field %s missing", f.Name)
		assert.NotNil(t, v)
	}
}

func TestCallIgnoresObjectWithNoRequiredFields(t *testing.T) {
	inv := &scriptedInvoker{responses: []*backend.Response{
		{Object: map[string]any{"unrelated": "stuff"}},
		{Object: map[string]any{"approach": []any{"from retry"}}},
	}}
	caller := New(inv, nil)

	artifact := caller.Call(context.Background(), "plan it", planSchema())

	assert.Equal(t, 2, inv.calls)
	assert.Equal(t, []any{"from retry"}, artifact.Fields["approach"])
}

func TestArtifactAccessors(t *testing.T) {
	a := &Artifact{Fields: map[string]any{
		"code":    "package main",
		"passed":  true,
		"list":    []any{"a", 1, "b"},
		"nested":  map[string]any{"k": "v"},
		"missing": nil,
	}}

	assert.Equal(t, "package main", a.String("code"))
	assert.Equal(t, "", a.String("absent"))
	assert.True(t, a.Bool("passed"))
	assert.Equal(t, []string{"a", "b"}, a.StringList("list"))
	assert.Equal(t, map[string]any{"k": "v"}, a.Object("nested"))
	assert.Nil(t, a.Object("absent"))
}

func TestArtifactClone(t *testing.T) {
	a := &Artifact{Fields: map[string]any{
		"list":   []any{"a"},
		"nested": map[string]any{"k": "v"},
	}}
	clone := a.Clone()

	clone.Fields["nested"].(map[string]any)["k"] = "changed"
	clone.Fields["list"].([]any)[0] = "changed"

	assert.Equal(t, "v", a.Fields["nested"].(map[string]any)["k"])
	assert.Equal(t, "a", a.Fields["list"].([]any)[0])
}
