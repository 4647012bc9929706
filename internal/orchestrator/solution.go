package orchestrator

import (
	"html"

	"github.com/coderforge/solverd/internal/agent"
	"github.com/coderforge/solverd/internal/task"
)

// Solution is the assembled final output of a completed task, merging
// the plan, research, code, and review artifacts.
type Solution struct {
	Code            string         `json:"code"`
	Language        string         `json:"language"`
	Explanation     string         `json:"explanation,omitempty"`
	ProblemAnalysis string         `json:"problem_analysis,omitempty"`
	Approach        []string       `json:"approach,omitempty"`
	Performance     []string       `json:"performance_considerations,omitempty"`
	Libraries       []string       `json:"libraries,omitempty"`
	BestPractices   []string       `json:"best_practices,omitempty"`
	FileStructure   map[string]any `json:"file_structure,omitempty"`
	TestsPassed     bool           `json:"tests_passed"`
	TestSummary     string         `json:"test_summary,omitempty"`
	Degraded        bool           `json:"degraded,omitempty"`
}

// Assemble builds the final solution from the task's artifacts. The
// improved code supersedes the original generation when the improvement
// round ran. Model output sometimes arrives HTML-escaped or fenced in
// markdown; both are normalized here so clients get raw source.
func Assemble(tc *task.Context) *Solution {
	code := tc.Artifact(task.PhaseImproving)
	if code == nil {
		code = tc.Artifact(task.PhaseGenerating)
	}
	plan := tc.Artifact(task.PhasePlanning)
	review := tc.Artifact(task.PhaseTesting)

	s := &Solution{Language: tc.Language}

	if code != nil {
		s.Code = agent.StripMarkdownCodeBlock(html.UnescapeString(code.String(agent.FieldCode)))
		s.Explanation = code.String(agent.FieldExplanation)
		s.Libraries = code.StringList(agent.FieldLibraries)
		s.BestPractices = code.StringList(agent.FieldBestPractices)
		s.FileStructure = code.Object(agent.FieldFileStructure)
		s.Degraded = s.Degraded || code.Degraded
	}
	if plan != nil {
		s.ProblemAnalysis = plan.String(agent.FieldProblemAnalysis)
		s.Approach = plan.StringList(agent.FieldApproach)
		s.Performance = plan.StringList("performance_considerations")
		s.Degraded = s.Degraded || plan.Degraded
	}
	if review != nil {
		s.TestSummary = review.String(agent.FieldSummary)
		s.TestsPassed = agent.Passed(review)
		s.Degraded = s.Degraded || review.Degraded
	}

	return s
}

// Payload renders the solution as an event payload map.
func (s *Solution) Payload() map[string]any {
	payload := map[string]any{
		"code":         s.Code,
		"language":     s.Language,
		"tests_passed": s.TestsPassed,
	}
	if s.Explanation != "" {
		payload["explanation"] = s.Explanation
	}
	if s.ProblemAnalysis != "" {
		payload["problem_analysis"] = s.ProblemAnalysis
	}
	if len(s.Approach) > 0 {
		payload["approach"] = s.Approach
	}
	if len(s.Performance) > 0 {
		payload["performance_considerations"] = s.Performance
	}
	if len(s.Libraries) > 0 {
		payload["libraries"] = s.Libraries
	}
	if len(s.BestPractices) > 0 {
		payload["best_practices"] = s.BestPractices
	}
	if s.FileStructure != nil {
		payload["file_structure"] = s.FileStructure
	}
	if s.TestSummary != "" {
		payload["test_summary"] = s.TestSummary
	}
	if s.Degraded {
		payload["degraded"] = true
	}
	return payload
}
