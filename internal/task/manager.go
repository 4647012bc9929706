package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes the solve pipeline for one task context. The
// orchestrator implements this; the indirection keeps the dependency
// pointing from orchestrator to task rather than the other way around.
type Runner interface {
	Run(ctx context.Context, tc *Context)
}

// Manager owns the task registry and the worker pool. Each task runs on
// its own goroutine, bounded by a semaphore so a burst of requests cannot
// start an unbounded number of concurrent pipelines.
type Manager struct {
	runner Runner
	logger *zap.Logger
	sem    chan struct{}

	mu      sync.Mutex
	tasks   map[string]*Context
	cancels map[string]context.CancelFunc
}

// NewManager creates a manager with the given worker limit.
func NewManager(runner Runner, workerLimit int, logger *zap.Logger) *Manager {
	if workerLimit <= 0 {
		workerLimit = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		runner:  runner,
		logger:  logger,
		sem:     make(chan struct{}, workerLimit),
		tasks:   make(map[string]*Context),
		cancels: make(map[string]context.CancelFunc),
	}
}

// CreateTask registers a new task and starts its worker. The returned id
// is immediately usable for status queries and event subscriptions.
func (m *Manager) CreateTask(requirements, language, additionalContext string) (string, error) {
	if requirements == "" {
		return "", fmt.Errorf("requirements must not be empty")
	}

	id := uuid.New().String()
	tc := NewContext(id, requirements, language, additionalContext)

	runCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.tasks[id] = tc
	m.cancels[id] = cancel
	m.mu.Unlock()

	m.logger.Info("task created",
		zap.String("task_id", id),
		zap.String("language", tc.Language))

	go m.work(runCtx, tc)

	return id, nil
}

// work acquires a worker slot and runs the pipeline to completion.
func (m *Manager) work(ctx context.Context, tc *Context) {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		tc.SetStatus(StatusCancelled, ReasonCancelled)
		m.release(tc.ID)
		return
	}
	defer func() { <-m.sem }()

	m.runner.Run(ctx, tc)
	m.release(tc.ID)
}

// release drops the cancel handle once a task reaches a terminal state.
// The context itself stays queryable until the process exits; durable
// storage is an external collaborator's concern.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancels, id)
}

// CancelTask requests cooperative cancellation of a running task.
// Cancellation takes effect at the next phase boundary; an in-flight
// backend call completes and its result is discarded.
func (m *Manager) CancelTask(id string) error {
	m.mu.Lock()
	cancel, running := m.cancels[id]
	_, known := m.tasks[id]
	m.mu.Unlock()

	if !known {
		return ErrNotFound
	}
	if !running {
		return fmt.Errorf("task %s is not running", id)
	}

	m.logger.Info("task cancellation requested", zap.String("task_id", id))
	cancel()
	return nil
}

// GetTaskStatus returns a snapshot summary of the task.
func (m *Manager) GetTaskStatus(id string) (Summary, error) {
	m.mu.Lock()
	tc, ok := m.tasks[id]
	m.mu.Unlock()

	if !ok {
		return Summary{}, ErrNotFound
	}
	return tc.Snapshot(), nil
}

// Get returns the live context for id. Intended for the duplex chat
// handler, which needs artifact access beyond the summary.
func (m *Manager) Get(id string) (*Context, error) {
	m.mu.Lock()
	tc, ok := m.tasks[id]
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return tc, nil
}
