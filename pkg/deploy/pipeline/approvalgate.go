package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ApprovalGate is the external approval signal the ApprovalGate stage
// blocks on: Wait parks until Approve/Reject is called for the same
// execution id, ctx is cancelled, or timeout elapses.
type ApprovalGate struct {
	mu      sync.Mutex
	waiters map[uuid.UUID]chan bool
}

// NewApprovalGate creates an empty gate.
func NewApprovalGate() *ApprovalGate {
	return &ApprovalGate{waiters: make(map[uuid.UUID]chan bool)}
}

// Wait blocks until Approve or Reject is called for executionID, ctx is
// cancelled, or timeout elapses (in which case it returns false, nil — a
// timeout is not a Go error; the caller treats it as "approval denied").
func (g *ApprovalGate) Wait(ctx context.Context, executionID uuid.UUID, timeout time.Duration) (bool, error) {
	ch := g.register(executionID)
	defer g.forget(executionID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case approved := <-ch:
		return approved, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
		return false, nil
	}
}

// Approve signals approval for a pending execution. It reports whether a
// waiter was actually present.
func (g *ApprovalGate) Approve(executionID uuid.UUID) bool {
	return g.signal(executionID, true)
}

// Reject signals denial for a pending execution.
func (g *ApprovalGate) Reject(executionID uuid.UUID) bool {
	return g.signal(executionID, false)
}

func (g *ApprovalGate) register(executionID uuid.UUID) chan bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan bool, 1)
	g.waiters[executionID] = ch
	return ch
}

func (g *ApprovalGate) forget(executionID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.waiters, executionID)
}

func (g *ApprovalGate) signal(executionID uuid.UUID, approved bool) bool {
	g.mu.Lock()
	ch, ok := g.waiters[executionID]
	g.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- approved:
	default:
	}
	return true
}
