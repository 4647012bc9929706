// Package task holds the per-request solving context and its lifecycle.
// A Context is owned by exactly one worker goroutine for the lifetime of
// a solve request; outside readers only ever see snapshots.
package task

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coderforge/solverd/internal/schemacall"
)

// Phase is one named stage of the solve pipeline.
type Phase string

const (
	PhasePlanning    Phase = "planning"
	PhaseResearching Phase = "researching"
	PhaseGenerating  Phase = "generating"
	PhaseTesting     Phase = "testing"
	PhaseImproving   Phase = "improving"
)

// Phases returns the pipeline phases in execution order.
func Phases() []Phase {
	return []Phase{PhasePlanning, PhaseResearching, PhaseGenerating, PhaseTesting, PhaseImproving}
}

// Status is the overall task status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a terminal value.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Failure reason codes surfaced on failed tasks.
const (
	ReasonBackendUnreachable = "backend_unreachable"
	ReasonCancelled          = "cancelled_by_owner"
)

// Context carries the state of one solve request. It is created by the
// Manager, mutated only by the owning worker through the setters below,
// and read by other goroutines via Snapshot.
type Context struct {
	ID                string
	Language          string
	Requirements      string
	AdditionalContext string
	CreatedAt         time.Time

	mu        sync.Mutex
	phase     Phase
	status    Status
	reason    string
	order     []Phase
	artifacts map[Phase]*schemacall.Artifact
	updatedAt time.Time
}

// NewContext creates a pending task context.
func NewContext(id, requirements, language, additionalContext string) *Context {
	now := time.Now()
	return &Context{
		ID:                id,
		Language:          NormalizeLanguage(language),
		Requirements:      requirements,
		AdditionalContext: additionalContext,
		CreatedAt:         now,
		status:            StatusPending,
		artifacts:         make(map[Phase]*schemacall.Artifact),
		updatedAt:         now,
	}
}

// FullRequirements combines the requirements with any additional context,
// the way prompts embed them.
func (c *Context) FullRequirements() string {
	if c.AdditionalContext == "" {
		return c.Requirements
	}
	return c.Requirements + "\n\nAdditional Context:\n" + c.AdditionalContext
}

// SetPhase records the currently executing phase.
func (c *Context) SetPhase(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = p
	c.updatedAt = time.Now()
}

// SetStatus records the overall status along with an optional reason code.
func (c *Context) SetStatus(s Status, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
	c.reason = reason
	c.updatedAt = time.Now()
}

// PutArtifact stores a phase artifact. Phase order is recorded on first
// write so that the sequence of completed phases can be asserted later.
func (c *Context) PutArtifact(p Phase, a *schemacall.Artifact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.artifacts[p]; !seen {
		c.order = append(c.order, p)
	}
	c.artifacts[p] = a
	c.updatedAt = time.Now()
}

// Artifact returns a clone of the artifact for p, or nil.
func (c *Context) Artifact(p Phase) *schemacall.Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.artifacts[p]
	if !ok {
		return nil
	}
	return a.Clone()
}

// Status returns the current status.
func (c *Context) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Summary is an immutable snapshot of a task context for outside readers.
type Summary struct {
	ID        string                   `json:"task_id"`
	Language  string                   `json:"language"`
	Status    Status                   `json:"status"`
	Phase     Phase                    `json:"phase,omitempty"`
	Reason    string                   `json:"reason,omitempty"`
	Phases    []Phase                  `json:"phases"`
	Artifacts map[Phase]map[string]any `json:"artifacts,omitempty"`
	Degraded  bool                     `json:"degraded,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Snapshot returns a deep-copied summary of the context.
func (c *Context) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	artifacts := make(map[Phase]map[string]any, len(c.artifacts))
	degraded := false
	for p, a := range c.artifacts {
		artifacts[p] = a.Clone().Fields
		if a.Degraded {
			degraded = true
		}
	}

	order := make([]Phase, len(c.order))
	copy(order, c.order)

	return Summary{
		ID:        c.ID,
		Language:  c.Language,
		Status:    c.status,
		Phase:     c.phase,
		Reason:    c.reason,
		Phases:    order,
		Artifacts: artifacts,
		Degraded:  degraded,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.updatedAt,
	}
}

// languageAliases maps common language name variants to canonical names.
var languageAliases = map[string]string{
	"javascript": "javascript",
	"js":         "javascript",
	"node":       "javascript",
	"nodejs":     "javascript",
	"node.js":    "javascript",
	"typescript": "typescript",
	"ts":         "typescript",
	"python":     "python",
	"py":         "python",
	"python3":    "python",
	"java":       "java",
	"c#":         "csharp",
	"csharp":     "csharp",
	"c-sharp":    "csharp",
	"c++":        "cpp",
	"cpp":        "cpp",
	"c":          "c",
	"go":         "go",
	"golang":     "go",
	"ruby":       "ruby",
	"rb":         "ruby",
	"php":        "php",
	"rust":       "rust",
	"rs":         "rust",
	"swift":      "swift",
	"kotlin":     "kotlin",
	"kt":         "kotlin",
}

// NormalizeLanguage maps a language name variant to its canonical form.
// Unknown names pass through lowercased.
func NormalizeLanguage(language string) string {
	cleaned := strings.ToLower(strings.TrimSpace(language))
	if cleaned == "" {
		return "python"
	}
	if canonical, ok := languageAliases[cleaned]; ok {
		return canonical
	}
	return cleaned
}

// ErrNotFound is returned when a task id is unknown.
var ErrNotFound = fmt.Errorf("task not found")
