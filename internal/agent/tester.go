package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coderforge/solverd/internal/schemacall"
	"github.com/coderforge/solverd/internal/task"
)

// Tester reviews generated code and reports whether it satisfies the
// requirements, listing concrete failing checks when it does not.
type Tester struct {
	base
}

// NewTester creates the code review agent.
func NewTester(caller *schemacall.Caller, logger *zap.Logger) *Tester {
	return &Tester{base: newBase("tester", task.PhaseTesting, caller, logger)}
}

// Run evaluates the current code artifact against the requirements and
// the plan's edge cases.
func (t *Tester) Run(ctx context.Context, tc *task.Context) *schemacall.Artifact {
	code := tc.Artifact(task.PhaseGenerating)
	plan := tc.Artifact(task.PhasePlanning)

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert software quality engineer. Review the following %s code against the stated requirements.\n\n", tc.Language)
	fmt.Fprintf(&b, "REQUIREMENTS:\n%s\n\n", tc.FullRequirements())
	if code != nil {
		fmt.Fprintf(&b, "CODE UNDER REVIEW:\n```%s\n%s\n```\n\n", tc.Language, code.String(FieldCode))
		if explanation := code.String(FieldExplanation); explanation != "" {
			fmt.Fprintf(&b, "AUTHOR'S EXPLANATION:\n%s\n\n", explanation)
		}
	}
	if plan != nil {
		writeListed(&b, "EDGE CASES THAT MUST BE HANDLED", plan.StringList(FieldEdgeCases))
	}

	b.WriteString("Evaluate the code carefully:\n")
	b.WriteString("1. Verify it implements every requirement\n")
	b.WriteString("2. Check each listed edge case is handled\n")
	b.WriteString("3. Look for bugs, unhandled errors, and incorrect logic\n")
	b.WriteString("4. Set passed to true only if the code would work correctly as written\n")
	b.WriteString("5. List each concrete failing check in failures; leave failures empty when the code passes\n\n")
	b.WriteString("Structure your response as a JSON object for easy parsing.\n")

	artifact := t.call(ctx, b.String(), TestSchema())

	// A degraded review must never be read as a clean pass.
	if artifact.Degraded {
		artifact.Fields[FieldPassed] = false
		if artifact.String(FieldSummary) == "" {
			artifact.Fields[FieldSummary] = "review unavailable"
		}
	}
	return artifact
}

// Passed reports whether a test artifact represents a clean review.
func Passed(a *schemacall.Artifact) bool {
	return a != nil && !a.Degraded && a.Bool(FieldPassed) && len(a.StringList(FieldFailures)) == 0
}
