// Package orchestrator drives a task through the agent pipeline. It
// owns phase sequencing, progress reporting, cooperative cancellation,
// and the decision to run the improvement round.
package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/coderforge/solverd/internal/agent"
	"github.com/coderforge/solverd/internal/events"
	"github.com/coderforge/solverd/internal/schemacall"
	"github.com/coderforge/solverd/internal/task"
)

// DefaultFatalTransportFailures is how many consecutive transport-level
// backend failures mark the backend unreachable.
const DefaultFatalTransportFailures = 3

// progressSpan maps each phase onto its slice of the overall percent
// scale. A phase reports its start value when entered and its end value
// when its artifact lands.
type progressSpan struct {
	start, end int
}

var progressTable = map[task.Phase]progressSpan{
	task.PhasePlanning:    {10, 25},
	task.PhaseResearching: {25, 45},
	task.PhaseGenerating:  {45, 70},
	task.PhaseTesting:     {70, 80},
	task.PhaseImproving:   {80, 100},
}

var phaseMessages = map[task.Phase]string{
	task.PhasePlanning:    "analyzing requirements and planning the solution",
	task.PhaseResearching: "researching libraries and best practices",
	task.PhaseGenerating:  "generating solution code",
	task.PhaseTesting:     "reviewing the solution",
	task.PhaseImproving:   "improving the solution from review feedback",
}

// Orchestrator runs the solve pipeline. It implements task.Runner.
type Orchestrator struct {
	planner    *agent.Planner
	researcher *agent.Researcher
	generator  *agent.Generator
	tester     *agent.Tester

	distributor    *events.Distributor
	logger         *zap.Logger
	fatalThreshold int
}

// Config carries orchestrator tunables.
type Config struct {
	// FatalTransportFailures is the consecutive failure count that
	// fails the task as backend unreachable. Zero selects the default.
	FatalTransportFailures int
}

// New wires an orchestrator from its agents.
func New(planner *agent.Planner, researcher *agent.Researcher, generator *agent.Generator, tester *agent.Tester, distributor *events.Distributor, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := cfg.FatalTransportFailures
	if threshold <= 0 {
		threshold = DefaultFatalTransportFailures
	}
	return &Orchestrator{
		planner:        planner,
		researcher:     researcher,
		generator:      generator,
		tester:         tester,
		distributor:    distributor,
		logger:         logger,
		fatalThreshold: threshold,
	}
}

// Run executes the pipeline for one task. Cancellation is cooperative:
// it is honored at phase boundaries, so an in-flight backend call runs
// to completion and its result is discarded.
func (o *Orchestrator) Run(ctx context.Context, tc *task.Context) {
	logger := o.logger.With(zap.String("task_id", tc.ID))
	logger.Info("pipeline started", zap.String("language", tc.Language))

	// Consecutive transport failures across phases; any clean backend
	// call resets it. Run-scoped because the orchestrator is shared by
	// every concurrent task.
	transportFailures := 0
	tc.SetStatus(task.StatusRunning, "")

	stages := []struct {
		phase task.Phase
		run   func(context.Context, *task.Context) *schemacall.Artifact
	}{
		{task.PhasePlanning, o.planner.Run},
		{task.PhaseResearching, o.researcher.Run},
		{task.PhaseGenerating, o.generator.Run},
		{task.PhaseTesting, o.tester.Run},
	}

	for _, stage := range stages {
		if o.cancelled(ctx, tc, logger) {
			return
		}
		if !o.runPhase(ctx, tc, stage.phase, stage.run, &transportFailures, logger) {
			return
		}
	}

	review := tc.Artifact(task.PhaseTesting)
	if !agent.Passed(review) {
		if o.cancelled(ctx, tc, logger) {
			return
		}
		if !o.runPhase(ctx, tc, task.PhaseImproving, o.improve, &transportFailures, logger) {
			return
		}
	}

	solution := Assemble(tc)
	tc.SetStatus(task.StatusCompleted, "")
	o.publish(events.ProgressEvent{
		TaskID:  tc.ID,
		Type:    events.TypeCompleted,
		Status:  task.StatusCompleted,
		Percent: 100,
		Payload: solution.Payload(),
	})
	logger.Info("pipeline completed", zap.Bool("degraded", solution.Degraded))
}

// runPhase executes one phase and handles the shared bookkeeping:
// progress events, artifact storage, degradation warnings, and the
// unreachable-backend check. Returns false when the pipeline must stop.
func (o *Orchestrator) runPhase(ctx context.Context, tc *task.Context, phase task.Phase, run func(context.Context, *task.Context) *schemacall.Artifact, transportFailures *int, logger *zap.Logger) bool {
	span := progressTable[phase]
	tc.SetPhase(phase)
	o.publish(events.ProgressEvent{
		TaskID:  tc.ID,
		Type:    events.TypeProgress,
		Status:  task.StatusRunning,
		Phase:   phase,
		Percent: span.start,
		Message: phaseMessages[phase],
	})

	artifact := run(ctx, tc)

	if artifact.TransportFailures > 0 {
		*transportFailures += artifact.TransportFailures
	} else {
		*transportFailures = 0
	}
	if *transportFailures >= o.fatalThreshold {
		logger.Error("backend unreachable, failing task",
			zap.Int("consecutive_failures", *transportFailures))
		tc.SetStatus(task.StatusFailed, task.ReasonBackendUnreachable)
		o.publish(events.ProgressEvent{
			TaskID:  tc.ID,
			Type:    events.TypeFailed,
			Status:  task.StatusFailed,
			Phase:   phase,
			Percent: span.start,
			Reason:  task.ReasonBackendUnreachable,
			Message: "backend unreachable after repeated failures",
		})
		return false
	}

	tc.PutArtifact(phase, artifact)

	if artifact.Degraded {
		logger.Warn("phase produced degraded artifact", zap.String("phase", string(phase)))
		o.publish(events.ProgressEvent{
			TaskID:  tc.ID,
			Type:    events.TypeWarning,
			Status:  task.StatusRunning,
			Phase:   phase,
			Percent: span.end,
			Message: "phase output degraded to defaults",
		})
	}

	o.publish(events.ProgressEvent{
		TaskID:  tc.ID,
		Type:    events.TypeProgress,
		Status:  task.StatusRunning,
		Phase:   phase,
		Percent: span.end,
	})
	return true
}

// improve runs the bounded collaboration round against peer artifacts.
func (o *Orchestrator) improve(ctx context.Context, tc *task.Context) *schemacall.Artifact {
	peers := map[task.Phase]*schemacall.Artifact{
		task.PhasePlanning:    tc.Artifact(task.PhasePlanning),
		task.PhaseResearching: tc.Artifact(task.PhaseResearching),
		task.PhaseGenerating:  tc.Artifact(task.PhaseGenerating),
		task.PhaseTesting:     tc.Artifact(task.PhaseTesting),
	}
	return o.generator.Collaborate(ctx, tc, peers)
}

// cancelled checks for cooperative cancellation at a phase boundary.
func (o *Orchestrator) cancelled(ctx context.Context, tc *task.Context, logger *zap.Logger) bool {
	if ctx.Err() == nil {
		return false
	}
	logger.Info("pipeline cancelled")
	tc.SetStatus(task.StatusCancelled, task.ReasonCancelled)
	o.publish(events.ProgressEvent{
		TaskID:  tc.ID,
		Type:    events.TypeCancelled,
		Status:  task.StatusCancelled,
		Reason:  task.ReasonCancelled,
		Message: "task cancelled",
	})
	return true
}

func (o *Orchestrator) publish(ev events.ProgressEvent) {
	if o.distributor == nil {
		return
	}
	o.distributor.Publish(ev)
}

var _ task.Runner = (*Orchestrator)(nil)
