package agent

import "github.com/coderforge/solverd/internal/schema"

// Artifact field names shared between agents and the orchestrator.
const (
	FieldProblemAnalysis = "problem_analysis"
	FieldApproach        = "approach"
	FieldEdgeCases       = "edge_cases"
	FieldCode            = "code"
	FieldExplanation     = "explanation"
	FieldFileStructure   = "file_structure"
	FieldLibraries       = "libraries"
	FieldBestPractices   = "best_practices"
	FieldCodeExamples    = "code_examples"
	FieldPassed          = "passed"
	FieldSummary         = "summary"
	FieldFailures        = "failures"
	FieldMessage         = "message"
)

// PlanSchema describes the planning artifact.
func PlanSchema() *schema.Schema {
	return schema.New("plan",
		schema.Field{Name: FieldProblemAnalysis, Kind: schema.KindString, Required: true,
			Description: "clear statement of the problem and its requirements"},
		schema.Field{Name: FieldApproach, Kind: schema.KindStringList, Required: true,
			Description: "solution broken into logical steps"},
		schema.Field{Name: "recommended_libraries", Kind: schema.KindStringList, Required: true},
		schema.Field{Name: "data_structures", Kind: schema.KindStringList, Required: true},
		schema.Field{Name: "algorithms", Kind: schema.KindStringList, Required: true},
		schema.Field{Name: "design_patterns", Kind: schema.KindStringList, Required: true},
		schema.Field{Name: FieldEdgeCases, Kind: schema.KindStringList, Required: true},
		schema.Field{Name: "performance_considerations", Kind: schema.KindStringList, Required: true},
	)
}

// ResearchSchema describes the research artifact.
func ResearchSchema() *schema.Schema {
	return schema.New("research",
		schema.Field{Name: FieldLibraries, Kind: schema.KindStringList, Required: true,
			Description: "libraries relevant to the plan, with a one-line reason each"},
		schema.Field{Name: FieldBestPractices, Kind: schema.KindStringList, Required: true},
		schema.Field{Name: FieldCodeExamples, Kind: schema.KindStringList, Required: true,
			Description: "short idiomatic snippets relevant to the approach"},
	)
}

// CodeSchema describes the generated-code artifact.
func CodeSchema() *schema.Schema {
	return schema.New("code",
		schema.Field{Name: FieldCode, Kind: schema.KindString, Required: true,
			Description: "the complete solution source"},
		schema.Field{Name: FieldExplanation, Kind: schema.KindString, Required: true},
		schema.Field{Name: FieldLibraries, Kind: schema.KindStringList, Required: true},
		schema.Field{Name: FieldBestPractices, Kind: schema.KindStringList, Required: true},
		schema.Field{Name: FieldFileStructure, Kind: schema.KindObject, Required: true,
			Description: "recommended file layout: {\"files\": [...], \"directories\": [...]}"},
	)
}

// TestSchema describes the test-review artifact.
func TestSchema() *schema.Schema {
	return schema.New("test",
		schema.Field{Name: FieldPassed, Kind: schema.KindBool, Required: true},
		schema.Field{Name: FieldSummary, Kind: schema.KindString, Required: true},
		schema.Field{Name: "output", Kind: schema.KindString, Required: false,
			Description: "raw review notes, verbatim"},
		schema.Field{Name: FieldFailures, Kind: schema.KindStringList, Required: true,
			Description: "each failing check, one line per failure"},
	)
}

// ChatSchema describes the duplex chat reply artifact.
func ChatSchema() *schema.Schema {
	return schema.New("chat",
		schema.Field{Name: FieldMessage, Kind: schema.KindString, Required: true},
		schema.Field{Name: FieldCode, Kind: schema.KindString, Required: false},
		schema.Field{Name: "type", Kind: schema.KindString, Required: true, Default: "text"},
	)
}
