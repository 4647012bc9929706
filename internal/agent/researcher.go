package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coderforge/solverd/internal/schemacall"
	"github.com/coderforge/solverd/internal/task"
)

// Researcher gathers library and best-practice findings for the plan.
type Researcher struct {
	base
}

// NewResearcher creates the research agent.
func NewResearcher(caller *schemacall.Caller, logger *zap.Logger) *Researcher {
	return &Researcher{base: newBase("researcher", task.PhaseResearching, caller, logger)}
}

// Run produces the research artifact from the plan context.
func (r *Researcher) Run(ctx context.Context, tc *task.Context) *schemacall.Artifact {
	plan := tc.Artifact(task.PhasePlanning)

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s researcher. Gather the concrete knowledge a developer needs to implement the following plan.\n\n", tc.Language)
	fmt.Fprintf(&b, "PROBLEM REQUIREMENTS:\n%s\n\n", tc.FullRequirements())

	if plan != nil {
		if analysis := plan.String(FieldProblemAnalysis); analysis != "" {
			fmt.Fprintf(&b, "PROBLEM ANALYSIS:\n%s\n\n", analysis)
		}
		writeBulleted(&b, "APPROACH", plan.StringList(FieldApproach))
		writeListed(&b, "CANDIDATE LIBRARIES", plan.StringList("recommended_libraries"))
		writeListed(&b, "ALGORITHMS", plan.StringList("algorithms"))
		writeListed(&b, "DATA STRUCTURES", plan.StringList("data_structures"))
		writeListed(&b, "DESIGN PATTERNS", plan.StringList("design_patterns"))
	}

	b.WriteString("For each candidate library, report whether it fits and why. ")
	fmt.Fprintf(&b, "Include idiomatic %s best practices and short code examples relevant to the approach.\n\n", tc.Language)
	b.WriteString("Structure your response as a JSON object for easy parsing.\n")

	return r.call(ctx, b.String(), ResearchSchema())
}

// writeBulleted writes a titled "- item" list section when items exist.
func writeBulleted(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

// writeListed writes a titled comma-joined section when items exist.
func writeListed(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n\n", title, strings.Join(items, ", "))
}
