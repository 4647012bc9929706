// Package agent implements the specialized pipeline roles. Each agent
// builds one prompt from the accumulated task context, runs it through
// the schema caller, and returns the resulting artifact. Agents never
// fail the pipeline; unusable model output surfaces as a degraded
// artifact, not an error.
package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/coderforge/solverd/internal/schema"
	"github.com/coderforge/solverd/internal/schemacall"
	"github.com/coderforge/solverd/internal/task"
)

// Agent is one named pipeline stage.
type Agent interface {
	// Name identifies the agent in logs and peer digests.
	Name() string

	// Phase returns the pipeline phase this agent serves.
	Phase() task.Phase

	// Run builds the phase prompt and produces its artifact.
	Run(ctx context.Context, tc *task.Context) *schemacall.Artifact
}

// base carries the shared wiring of every agent.
type base struct {
	name   string
	phase  task.Phase
	caller *schemacall.Caller
	logger *zap.Logger
}

func newBase(name string, phase task.Phase, caller *schemacall.Caller, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		name:   name,
		phase:  phase,
		caller: caller,
		logger: logger.Named(name),
	}
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Phase() task.Phase {
	return b.phase
}

// call runs one schema caller invocation and logs the outcome.
func (b *base) call(ctx context.Context, prompt string, s *schema.Schema) *schemacall.Artifact {
	artifact := b.caller.Call(ctx, prompt, s)
	if artifact.Degraded {
		b.logger.Warn("produced degraded artifact", zap.String("schema", s.Name))
	} else {
		b.logger.Debug("produced artifact",
			zap.String("schema", s.Name),
			zap.String("strategy", string(artifact.Strategy)))
	}
	return artifact
}
