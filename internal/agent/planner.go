package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coderforge/solverd/internal/schemacall"
	"github.com/coderforge/solverd/internal/task"
)

// Planner analyzes the problem and produces a solution plan.
type Planner struct {
	base
}

// NewPlanner creates the planning agent.
func NewPlanner(caller *schemacall.Caller, logger *zap.Logger) *Planner {
	return &Planner{base: newBase("planner", task.PhasePlanning, caller, logger)}
}

// Run produces the plan artifact.
func (p *Planner) Run(ctx context.Context, tc *task.Context) *schemacall.Artifact {
	var b strings.Builder
	b.WriteString("You are an expert software architecture and design specialist. ")
	b.WriteString("Analyze the following programming problem and create a detailed solution plan.\n\n")
	fmt.Fprintf(&b, "PROBLEM REQUIREMENTS:\n%s\n\n", tc.FullRequirements())
	fmt.Fprintf(&b, "TARGET LANGUAGE: %s\n\n", tc.Language)
	b.WriteString("Provide a comprehensive analysis covering:\n")
	b.WriteString("1. A clear problem statement and understanding of the requirements\n")
	b.WriteString("2. Key algorithms, data structures, or design patterns that would be appropriate\n")
	b.WriteString("3. High-level approach, breaking the solution into logical steps\n")
	b.WriteString("4. Potential edge cases or challenges to consider\n")
	b.WriteString("5. Required libraries or frameworks that would help\n")
	b.WriteString("6. Performance considerations\n\n")
	b.WriteString("Structure your response as a JSON object for easy parsing.\n")

	return p.call(ctx, b.String(), PlanSchema())
}
