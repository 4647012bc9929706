// Package schemacall turns one unreliable backend invocation into a
// guaranteed schema-conformant artifact. Call never returns an error:
// malformed output falls through an extraction and reformulation ladder,
// and the worst case is an all-defaults artifact flagged as degraded.
package schemacall

import (
	"context"

	"go.uber.org/zap"

	"github.com/coderforge/solverd/internal/backend"
	"github.com/coderforge/solverd/internal/extract"
	"github.com/coderforge/solverd/internal/schema"
)

// StrategyNative marks an artifact built from an object the backend
// returned already parsed, with no extraction needed.
const StrategyNative = extract.Strategy("native")

// Artifact is the schema-validated structured object produced by one
// phase. Every required schema field is present; missing fields were
// backfilled from declared defaults.
type Artifact struct {
	// Fields is the backfilled object.
	Fields map[string]any `json:"fields"`

	// Degraded is set when extraction failed entirely and every field
	// holds its default value. Downstream consumers surface a soft
	// warning but the pipeline continues.
	Degraded bool `json:"degraded"`

	// Strategy records how the object was recovered.
	Strategy extract.Strategy `json:"strategy"`

	// TransportFailures counts transport-level backend failures
	// encountered while producing this artifact. The orchestrator
	// accumulates these against its fatal threshold.
	TransportFailures int `json:"transport_failures,omitempty"`
}

// String returns a string field, or "" when absent or mistyped.
func (a *Artifact) String(name string) string {
	v, _ := a.Fields[name].(string)
	return v
}

// Bool returns a bool field, or false when absent or mistyped.
func (a *Artifact) Bool(name string) bool {
	v, _ := a.Fields[name].(bool)
	return v
}

// StringList returns a string-list field, skipping mistyped items.
func (a *Artifact) StringList(name string) []string {
	list, _ := a.Fields[name].([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Object returns an object field, or nil when absent or mistyped.
func (a *Artifact) Object(name string) map[string]any {
	v, _ := a.Fields[name].(map[string]any)
	return v
}

// Clone returns a deep copy of the artifact. Peer artifacts handed to
// collaboration rounds are clones, never live references.
func (a *Artifact) Clone() *Artifact {
	return &Artifact{
		Fields:            cloneValue(a.Fields).(map[string]any),
		Degraded:          a.Degraded,
		Strategy:          a.Strategy,
		TransportFailures: a.TransportFailures,
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Caller wraps a backend Invoker with the extraction and default ladder.
type Caller struct {
	invoker backend.Invoker
	logger  *zap.Logger
}

// New creates a schema caller.
func New(invoker backend.Invoker, logger *zap.Logger) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Caller{invoker: invoker, logger: logger}
}

// Call invokes the backend and always returns a schema-conformant
// artifact. The ladder:
//
//  1. invoke with the schema attached
//  2. native object with at least one required field: backfill, done
//  3. free text: run extraction; on success with at least one required
//     field, backfill, done
//  4. re-invoke once with the schema rendered as literal instructions
//     and a directive to reply with nothing but the object
//  5. synthesize an all-defaults artifact, flagged degraded
func (c *Caller) Call(ctx context.Context, prompt string, s *schema.Schema) *Artifact {
	transportFailures := 0

	if artifact := c.attempt(ctx, prompt, s, &transportFailures); artifact != nil {
		artifact.TransportFailures = transportFailures
		return artifact
	}

	reformulated := prompt + "\n\n" + s.Instructions()
	c.logger.Warn("structured output attempt failed, reformulating",
		zap.String("schema", s.Name))

	if artifact := c.attempt(ctx, reformulated, s, &transportFailures); artifact != nil {
		artifact.TransportFailures = transportFailures
		return artifact
	}

	c.logger.Warn("all extraction attempts failed, synthesizing defaults",
		zap.String("schema", s.Name))

	return &Artifact{
		Fields:            s.DefaultObject(),
		Degraded:          true,
		Strategy:          extract.StrategyNone,
		TransportFailures: transportFailures,
	}
}

// attempt performs one invocation and tries to recover an object from
// it. Returns nil when the attempt produced nothing usable.
func (c *Caller) attempt(ctx context.Context, prompt string, s *schema.Schema, transportFailures *int) *Artifact {
	resp, err := c.invoker.Invoke(ctx, prompt, s)
	if err != nil {
		*transportFailures++
		c.logger.Warn("backend invocation failed",
			zap.String("schema", s.Name),
			zap.Error(err))
		return nil
	}

	if resp.Object != nil && s.CoverageCount(resp.Object) > 0 {
		return &Artifact{
			Fields:   s.Backfill(resp.Object),
			Strategy: StrategyNative,
		}
	}

	if resp.Text != "" {
		result := extract.Extract(resp.Text)
		if result.OK && s.CoverageCount(result.Object) > 0 {
			return &Artifact{
				Fields:   s.Backfill(result.Object),
				Strategy: result.Strategy,
			}
		}
	}

	return nil
}
