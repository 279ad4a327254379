// Package kernelnode implements the per-node deploy primitive and the
// per-environment cluster that owns a set of nodes (C12).
package kernelnode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/module"
)

// State is a node's position in its deploy lifecycle.
type State string

const (
	Idle      State = "idle"
	Deploying State = "deploying"
	Healthy   State = "healthy"
	Unhealthy State = "unhealthy"
	Failed    State = "failed"
)

// HistoryEntry records one deploy attempt against a node.
type HistoryEntry struct {
	Module     module.Module `json:"module"`
	DeployedAt time.Time     `json:"deployed_at"`
	Success    bool          `json:"success"`
}

// DeploymentResult is the outcome of a single node's Deploy call.
type DeploymentResult struct {
	NodeID   uuid.UUID     `json:"node_id"`
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

// KernelNode is a single deploy target. The Simulate* flags exist for tests
// and chaos exercises and are never set by production wiring.
type KernelNode struct {
	NodeID      uuid.UUID
	Hostname    string
	Port        int
	Environment string

	// SimulateDeploymentFailure makes Deploy report failure without
	// touching node state beyond marking it Failed.
	SimulateDeploymentFailure bool
	// SimulateUnhealthy makes Deploy succeed but IsHealthy subsequently
	// report false, mimicking a node that accepts a deploy and then falls
	// over before the health probe runs.
	SimulateUnhealthy bool
	// SimulateException makes Deploy fail as if the deploy call itself
	// panicked/threw, distinct from an ordinary deployment rejection.
	SimulateException bool

	mu                sync.Mutex
	state             State
	currentModule     *module.Module
	deploymentHistory []HistoryEntry
	now               func() time.Time
}

// New creates an idle KernelNode in environment.
func New(hostname string, port int, environment string) *KernelNode {
	return &KernelNode{
		NodeID:      uuid.New(),
		Hostname:    hostname,
		Port:        port,
		Environment: environment,
		state:       Idle,
		now:         time.Now,
	}
}

// Deploy attempts to deploy mod to the node, honoring the Simulate* flags.
// On success the node transitions to Healthy, records the module as current,
// and appends a HistoryEntry.
func (n *KernelNode) Deploy(ctx context.Context, mod module.Module) DeploymentResult {
	start := n.now()

	if err := ctx.Err(); err != nil {
		return DeploymentResult{NodeID: n.NodeID, Success: false, Message: fmt.Sprintf("deploy cancelled: %v", err), Duration: 0}
	}

	n.mu.Lock()
	n.state = Deploying
	n.mu.Unlock()

	if n.SimulateException {
		n.setState(Failed)
		return DeploymentResult{
			NodeID:   n.NodeID,
			Success:  false,
			Message:  fmt.Sprintf("exception deploying to node %s: simulated exception", n.NodeID),
			Duration: n.now().Sub(start),
		}
	}

	if n.SimulateDeploymentFailure {
		n.setState(Failed)
		return DeploymentResult{
			NodeID:   n.NodeID,
			Success:  false,
			Message:  fmt.Sprintf("deployment to node %s failed", n.NodeID),
			Duration: n.now().Sub(start),
		}
	}

	n.mu.Lock()
	n.state = Healthy
	m := mod
	n.currentModule = &m
	n.deploymentHistory = append(n.deploymentHistory, HistoryEntry{Module: m, DeployedAt: n.now(), Success: true})
	n.mu.Unlock()

	return DeploymentResult{
		NodeID:   n.NodeID,
		Success:  true,
		Message:  fmt.Sprintf("deployed %s@%s to node %s", m.Name, m.Version, n.NodeID),
		Duration: n.now().Sub(start),
	}
}

func (n *KernelNode) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

// State returns the node's current lifecycle state.
func (n *KernelNode) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// CurrentModule returns the module currently deployed, if any.
func (n *KernelNode) CurrentModule() (module.Module, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.currentModule == nil {
		return module.Module{}, false
	}
	return *n.currentModule, true
}

// DeploymentHistory returns a copy of every recorded deploy attempt, oldest
// first.
func (n *KernelNode) DeploymentHistory() []HistoryEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]HistoryEntry, len(n.deploymentHistory))
	copy(out, n.deploymentHistory)
	return out
}

// PreviousModule returns the module with the next-lower semantic version
// relative to the node's current module, used by rollback to find a
// redeploy target. This is not simply the prior history entry: concurrent
// deploys can leave gaps or out-of-order entries in deploymentHistory, so
// the target is chosen by comparing parsed versions rather than slice
// position. History entries whose version fails to parse are skipped.
func (n *KernelNode) PreviousModule() (module.Module, bool) {
	current, ok := n.CurrentModule()
	if !ok {
		return module.Module{}, false
	}
	currentVer, err := current.ParsedVersion()
	if err != nil {
		return module.Module{}, false
	}

	var (
		best    module.Module
		bestVer *semver.Version
		found   bool
	)
	for _, entry := range n.DeploymentHistory() {
		v, err := entry.Module.ParsedVersion()
		if err != nil || !v.LessThan(currentVer) {
			continue
		}
		if !found || v.GreaterThan(bestVer) {
			best = entry.Module
			bestVer = v
			found = true
		}
	}
	return best, found
}

// IsHealthy reports the node's health-probe result. A node flagged
// SimulateUnhealthy always probes unhealthy regardless of its Deploy
// outcome; otherwise health tracks the lifecycle state.
func (n *KernelNode) IsHealthy() bool {
	if n.SimulateUnhealthy {
		return false
	}
	return n.State() == Healthy
}
