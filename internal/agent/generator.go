package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coderforge/solverd/internal/schemacall"
	"github.com/coderforge/solverd/internal/task"
)

// DefaultMaxIterations bounds the collaborative refinement loop.
const DefaultMaxIterations = 3

// Generator produces the code artifact and refines it during the
// improvement phase.
type Generator struct {
	base
	maxIterations int
}

// NewGenerator creates the code generation agent. maxIterations bounds
// Collaborate; zero or negative selects the default.
func NewGenerator(caller *schemacall.Caller, maxIterations int, logger *zap.Logger) *Generator {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Generator{
		base:          newBase("generator", task.PhaseGenerating, caller, logger),
		maxIterations: maxIterations,
	}
}

// Run produces the code artifact from the plan and research context.
func (g *Generator) Run(ctx context.Context, tc *task.Context) *schemacall.Artifact {
	plan := tc.Artifact(task.PhasePlanning)
	research := tc.Artifact(task.PhaseResearching)

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s developer. Generate clean, optimized code for the following problem.\n\n", tc.Language)
	fmt.Fprintf(&b, "PROBLEM REQUIREMENTS:\n%s\n\n", tc.FullRequirements())

	if plan != nil {
		if analysis := plan.String(FieldProblemAnalysis); analysis != "" {
			fmt.Fprintf(&b, "PROBLEM ANALYSIS:\n%s\n\n", analysis)
		}
		writeBulleted(&b, "APPROACH", plan.StringList(FieldApproach))
		writeListed(&b, "KEY ALGORITHMS", plan.StringList("algorithms"))
		writeListed(&b, "KEY DATA STRUCTURES", plan.StringList("data_structures"))
		writeListed(&b, "EDGE CASES TO HANDLE", plan.StringList(FieldEdgeCases))
		writeListed(&b, "PERFORMANCE CONSIDERATIONS", plan.StringList("performance_considerations"))
	}
	if research != nil {
		writeBulleted(&b, "RECOMMENDED LIBRARIES", research.StringList(FieldLibraries))
		writeBulleted(&b, "BEST PRACTICES TO FOLLOW", research.StringList(FieldBestPractices))
		writeBulleted(&b, "CODE EXAMPLES FOR REFERENCE", research.StringList(FieldCodeExamples))
	}

	b.WriteString("Provide a complete solution with:\n")
	b.WriteString("1. Well-structured, clean code, optimized for both runtime and memory\n")
	b.WriteString("2. Appropriate error handling\n")
	b.WriteString("3. Clear comments explaining complex parts\n")
	b.WriteString("4. Any necessary helper functions or types\n")
	b.WriteString("5. A recommended file structure if the solution spans multiple files\n\n")
	b.WriteString("Structure your response as a JSON object for easy parsing.\n")

	artifact := g.call(ctx, b.String(), CodeSchema())
	artifact.Fields[FieldCode] = StripMarkdownCodeBlock(artifact.String(FieldCode))
	return artifact
}

// Collaborate runs the bounded refinement loop against peer artifacts.
// The current best artifact is replaced only when an iteration yields a
// parseable result with non-empty code; a rejected iteration stops the
// loop early, as does convergence (two consecutive iterations with
// byte-identical code).
func (g *Generator) Collaborate(ctx context.Context, tc *task.Context, peers map[task.Phase]*schemacall.Artifact) *schemacall.Artifact {
	best := peers[task.PhaseGenerating]
	if best == nil {
		best = tc.Artifact(task.PhaseGenerating)
	}
	if best == nil {
		g.logger.Warn("no code artifact to refine")
		return &schemacall.Artifact{Fields: CodeSchema().DefaultObject(), Degraded: true}
	}
	best = best.Clone()

	for iteration := 1; iteration <= g.maxIterations; iteration++ {
		prompt := g.refinePrompt(tc, best, peers)
		candidate := g.call(ctx, prompt, CodeSchema())
		candidate.Fields[FieldCode] = StripMarkdownCodeBlock(candidate.String(FieldCode))

		code := candidate.String(FieldCode)
		if candidate.Degraded || code == "" {
			g.logger.Info("refinement rejected, keeping previous best",
				zap.Int("iteration", iteration))
			return best
		}

		if code == best.String(FieldCode) {
			g.logger.Info("refinement converged",
				zap.Int("iteration", iteration))
			return candidate
		}

		best = candidate
	}

	return best
}

// refinePrompt embeds the current best code plus digests of each peer
// artifact's most relevant fields.
func (g *Generator) refinePrompt(tc *task.Context, best *schemacall.Artifact, peers map[task.Phase]*schemacall.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s developer. Refine and optimize the following code based on collaborative feedback from multiple specialized agents.\n\n", tc.Language)
	fmt.Fprintf(&b, "CURRENT CODE:\n```%s\n%s\n```\n\n", tc.Language, best.String(FieldCode))

	if plan := peers[task.PhasePlanning]; plan != nil {
		b.WriteString("PLANNING INSIGHTS:\n")
		writeBulleted(&b, "Approach", plan.StringList(FieldApproach))
		writeBulleted(&b, "Edge Cases", plan.StringList(FieldEdgeCases))
		writeBulleted(&b, "Performance Considerations", plan.StringList("performance_considerations"))
	}
	if research := peers[task.PhaseResearching]; research != nil {
		b.WriteString("RESEARCH INSIGHTS:\n")
		writeBulleted(&b, "Recommended Libraries", research.StringList(FieldLibraries))
		writeBulleted(&b, "Best Practices", research.StringList(FieldBestPractices))
	}
	if test := peers[task.PhaseTesting]; test != nil {
		b.WriteString("TEST INSIGHTS:\n")
		if summary := test.String(FieldSummary); summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", summary)
		}
		writeBulleted(&b, "Failing Checks", test.StringList(FieldFailures))
	}

	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Fix the identified issues, especially every failing check\n")
	b.WriteString("2. Improve structure, error handling, and edge case coverage\n")
	b.WriteString("3. Keep the solution complete; do not omit unchanged sections\n\n")
	b.WriteString("Structure your response as a JSON object for easy parsing.\n")
	return b.String()
}

// StripMarkdownCodeBlock removes markdown fencing from a code snippet,
// returning the first fenced block when one exists.
func StripMarkdownCodeBlock(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.Contains(trimmed, "```") {
		return trimmed
	}
	start := strings.Index(trimmed, "```")
	rest := trimmed[start+3:]
	// Drop the optional language tag line.
	if nl := strings.Index(rest, "\n"); nl != -1 {
		firstLine := strings.TrimSpace(rest[:nl])
		if !strings.ContainsAny(firstLine, " \t{}();") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	block := strings.TrimSpace(rest)
	if block == "" {
		return trimmed
	}
	return block
}
