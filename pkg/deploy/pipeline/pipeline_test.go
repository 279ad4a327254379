package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/deploy/strategy"
	"github.com/coreshift/switchyard/pkg/kernelnode"
	"github.com/coreshift/switchyard/pkg/module"
)

func newOrchestrator(t *testing.T, opts Options) (*Orchestrator, *Tracker, *ApprovalGate) {
	t.Helper()
	tracker := NewTracker()
	gate := NewApprovalGate()
	orch := New(tracker, gate, nil, nil, opts)
	orch.RegisterStrategy(strategy.DirectStrategy{})
	orch.RegisterStrategy(strategy.RollingStrategy{})
	return orch, tracker, gate
}

func TestOrchestrator_SuccessfulDeployment(t *testing.T) {
	cluster := kernelnode.NewEnvironmentCluster("staging")
	_ = cluster.AddNode(kernelnode.New("node-1", 8080, "staging"))
	_ = cluster.AddNode(kernelnode.New("node-2", 8080, "staging"))

	orch, _, _ := newOrchestrator(t, Options{})
	orch.RegisterCluster(cluster)

	exec, err := orch.CreateDeployment(context.Background(), module.Module{Name: "checkout", Version: "1.0.0"}, "staging", "direct")
	if err != nil {
		t.Fatalf("CreateDeployment() error = %v", err)
	}
	if exec.State != StateSucceeded {
		t.Errorf("State = %v, want Succeeded (stages: %+v)", exec.State, exec.Stages)
	}
	if exec.NodesDeployed != 2 {
		t.Errorf("NodesDeployed = %d, want 2", exec.NodesDeployed)
	}
}

func TestOrchestrator_ValidateFailsOnBadModule(t *testing.T) {
	cluster := kernelnode.NewEnvironmentCluster("staging")
	_ = cluster.AddNode(kernelnode.New("node-1", 8080, "staging"))

	orch, _, _ := newOrchestrator(t, Options{})
	orch.RegisterCluster(cluster)

	exec, err := orch.CreateDeployment(context.Background(), module.Module{Name: "", Version: "1.0.0"}, "staging", "direct")
	if err != nil {
		t.Fatalf("CreateDeployment() error = %v", err)
	}
	if exec.State != StateFailed {
		t.Errorf("State = %v, want Failed", exec.State)
	}
	if len(exec.Stages) != 1 || exec.Stages[0].Stage != StageValidate {
		t.Errorf("Stages = %+v, want a single failed Validate stage", exec.Stages)
	}
}

func TestOrchestrator_UnknownEnvironmentFailsValidate(t *testing.T) {
	orch, _, _ := newOrchestrator(t, Options{})
	exec, err := orch.CreateDeployment(context.Background(), module.Module{Name: "checkout", Version: "1.0.0"}, "nowhere", "direct")
	if err != nil {
		t.Fatalf("CreateDeployment() error = %v", err)
	}
	if exec.State != StateFailed {
		t.Errorf("State = %v, want Failed", exec.State)
	}
}

func TestOrchestrator_PreDeployHealthFailsWithNoHealthyNodes(t *testing.T) {
	cluster := kernelnode.NewEnvironmentCluster("staging")
	n := kernelnode.New("node-1", 8080, "staging")
	n.SimulateUnhealthy = true
	_ = cluster.AddNode(n)

	orch, _, _ := newOrchestrator(t, Options{})
	orch.RegisterCluster(cluster)

	exec, err := orch.CreateDeployment(context.Background(), module.Module{Name: "checkout", Version: "1.0.0"}, "staging", "direct")
	if err != nil {
		t.Fatalf("CreateDeployment() error = %v", err)
	}
	if exec.State != StateFailed {
		t.Errorf("State = %v, want Failed", exec.State)
	}
	last := exec.Stages[len(exec.Stages)-1]
	if last.Stage != StagePreDeployHealth {
		t.Errorf("last stage = %q, want %q", last.Stage, StagePreDeployHealth)
	}
}

func TestOrchestrator_DeployFailureRollsBackToPreviousVersion(t *testing.T) {
	cluster := kernelnode.NewEnvironmentCluster("staging")
	ctx := context.Background()
	n := kernelnode.New("node-1", 8080, "staging")
	n.Deploy(ctx, module.Module{Name: "checkout", Version: "1.0.0"})
	n.SimulateDeploymentFailure = true
	_ = cluster.AddNode(n)

	orch, _, _ := newOrchestrator(t, Options{})
	orch.RegisterCluster(cluster)

	exec, err := orch.CreateDeployment(ctx, module.Module{Name: "checkout", Version: "2.0.0"}, "staging", "direct")
	if err != nil {
		t.Fatalf("CreateDeployment() error = %v", err)
	}
	if exec.State != StateRolledBack {
		t.Errorf("State = %v, want RolledBack (stages: %+v)", exec.State, exec.Stages)
	}
	mod, ok := n.CurrentModule()
	if !ok || mod.Version != "1.0.0" {
		t.Errorf("CurrentModule() = %+v, %v, want 1.0.0 restored", mod, ok)
	}
}

func TestOrchestrator_VerifyFailureRollsBack(t *testing.T) {
	cluster := kernelnode.NewEnvironmentCluster("staging")
	ctx := context.Background()

	nodes := make([]*kernelnode.KernelNode, 4)
	for i := range nodes {
		n := kernelnode.New("node", 8080, "staging")
		n.Deploy(ctx, module.Module{Name: "checkout", Version: "1.0.0"})
		nodes[i] = n
	}
	// Flag 3 of 4 as unhealthy post-deploy so Verify's health fraction drops
	// under the 50% default while PreDeployHealth (>=1 healthy) still passes.
	nodes[1].SimulateUnhealthy = true
	nodes[2].SimulateUnhealthy = true
	nodes[3].SimulateUnhealthy = true
	for _, n := range nodes {
		_ = cluster.AddNode(n)
	}

	orch, _, _ := newOrchestrator(t, Options{})
	orch.RegisterCluster(cluster)

	exec, err := orch.CreateDeployment(ctx, module.Module{Name: "checkout", Version: "2.0.0"}, "staging", "direct")
	if err != nil {
		t.Fatalf("CreateDeployment() error = %v", err)
	}
	if exec.State != StateRolledBack {
		t.Errorf("State = %v, want RolledBack (stages: %+v)", exec.State, exec.Stages)
	}
	for _, n := range nodes {
		mod, ok := n.CurrentModule()
		if ok && mod.Version == "2.0.0" {
			t.Errorf("node %s still on rolled-back version 2.0.0", n.NodeID)
		}
	}
}

func TestOrchestrator_ApprovalRequired_ApprovedSucceeds(t *testing.T) {
	cluster := kernelnode.NewEnvironmentCluster("staging")
	_ = cluster.AddNode(kernelnode.New("node-1", 8080, "staging"))

	orch, _, gate := newOrchestrator(t, Options{RequireApproval: true, ApprovalTimeout: time.Second})
	orch.RegisterCluster(cluster)

	resultCh := make(chan Execution, 1)
	go func() {
		exec, _ := orch.CreateDeployment(context.Background(), module.Module{Name: "checkout", Version: "1.0.0"}, "staging", "direct")
		resultCh <- exec
	}()

	time.Sleep(20 * time.Millisecond)
	approved := false
	for i := 0; i < 20 && !approved; i++ {
		if id, ok := pendingExecutionID(orch); ok {
			approved = gate.Approve(id)
		}
		if approved {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !approved {
		t.Fatal("never found a pending execution to approve")
	}

	select {
	case exec := <-resultCh:
		if exec.State != StateSucceeded {
			t.Errorf("State = %v, want Succeeded (stages: %+v)", exec.State, exec.Stages)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("CreateDeployment() did not return after approval")
	}
}

func TestOrchestrator_ApprovalRequired_TimesOutFails(t *testing.T) {
	cluster := kernelnode.NewEnvironmentCluster("staging")
	_ = cluster.AddNode(kernelnode.New("node-1", 8080, "staging"))

	orch, _, _ := newOrchestrator(t, Options{RequireApproval: true, ApprovalTimeout: 10 * time.Millisecond})
	orch.RegisterCluster(cluster)

	exec, err := orch.CreateDeployment(context.Background(), module.Module{Name: "checkout", Version: "1.0.0"}, "staging", "direct")
	if err != nil {
		t.Fatalf("CreateDeployment() error = %v", err)
	}
	if exec.State != StateFailed {
		t.Errorf("State = %v, want Failed on approval timeout", exec.State)
	}
}

// pendingExecutionID finds the single execution currently parked in
// PendingApproval, if any.
func pendingExecutionID(orch *Orchestrator) (uuid.UUID, bool) {
	for _, exec := range orch.tracker.GetInProgress() {
		if exec.State == StatePendingApproval {
			return exec.ExecutionID, true
		}
	}
	return uuid.UUID{}, false
}
