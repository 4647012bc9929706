// Package events fans task progress out to in-process subscribers and,
// when a NATS connection is attached, mirrors every event onto the bus
// for external consumers.
package events

import (
	"time"

	"github.com/coderforge/solverd/internal/task"
)

// Type classifies a progress event.
type Type string

const (
	// TypeProgress reports phase and percent movement.
	TypeProgress Type = "progress"

	// TypeWarning reports a soft degradation the pipeline survived.
	TypeWarning Type = "warning"

	// TypeCompleted carries the final solution payload.
	TypeCompleted Type = "completed"

	// TypeFailed reports a fatal failure with a reason code.
	TypeFailed Type = "failed"

	// TypeCancelled reports owner-requested cancellation.
	TypeCancelled Type = "cancelled"
)

// Terminal reports whether the event type ends the stream.
func (t Type) Terminal() bool {
	return t == TypeCompleted || t == TypeFailed || t == TypeCancelled
}

// ProgressEvent is one update on a task's event stream. Seq is assigned
// by the distributor and increases by one per task, so a consumer can
// detect gaps after a reconnect.
type ProgressEvent struct {
	TaskID    string         `json:"task_id"`
	Seq       uint64         `json:"seq"`
	Type      Type           `json:"type"`
	Status    task.Status    `json:"status,omitempty"`
	Phase     task.Phase     `json:"phase,omitempty"`
	Percent   int            `json:"percent"`
	Message   string         `json:"message,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
