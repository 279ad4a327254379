package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// Tracker is the single writer-many readers store of pipeline Execution
// records, keyed by execution id.
type Tracker struct {
	mu         sync.RWMutex
	executions map[uuid.UUID]Execution
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{executions: make(map[uuid.UUID]Execution)}
}

func (t *Tracker) put(exec Execution) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executions[exec.ExecutionID] = exec
}

// GetResult returns the full record for an execution.
func (t *Tracker) GetResult(executionID uuid.UUID) (Execution, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	exec, ok := t.executions[executionID]
	return exec, ok
}

// GetPipelineState returns just an execution's current state.
func (t *Tracker) GetPipelineState(executionID uuid.UUID) (State, bool) {
	exec, ok := t.GetResult(executionID)
	if !ok {
		return "", false
	}
	return exec.State, true
}

// GetInProgress returns every execution whose state is not yet terminal.
func (t *Tracker) GetInProgress() []Execution {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Execution
	for _, exec := range t.executions {
		switch exec.State {
		case StateSucceeded, StateFailed, StateRolledBack:
		default:
			out = append(out, exec)
		}
	}
	return out
}

// List returns every execution the tracker has recorded.
func (t *Tracker) List() []Execution {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Execution, 0, len(t.executions))
	for _, exec := range t.executions {
		out = append(out, exec)
	}
	return out
}

// ListByEnvironment returns every execution targeting environment.
func (t *Tracker) ListByEnvironment(environment string) []Execution {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Execution
	for _, exec := range t.executions {
		if exec.Environment == environment {
			out = append(out, exec)
		}
	}
	return out
}
