package kernelnode

import (
	"context"
	"testing"

	"github.com/coreshift/switchyard/pkg/module"
)

func TestKernelNode_DeploySuccess(t *testing.T) {
	n := New("node-1.internal", 8080, "staging")
	mod := module.Module{Name: "checkout", Version: "1.0.0"}

	result := n.Deploy(context.Background(), mod)
	if !result.Success {
		t.Fatalf("Deploy() = %+v, want success", result)
	}
	if n.State() != Healthy {
		t.Errorf("State() = %v, want Healthy", n.State())
	}
	got, ok := n.CurrentModule()
	if !ok || got.Version != "1.0.0" {
		t.Errorf("CurrentModule() = %+v, %v, want checkout@1.0.0", got, ok)
	}
	if len(n.DeploymentHistory()) != 1 {
		t.Errorf("DeploymentHistory() length = %d, want 1", len(n.DeploymentHistory()))
	}
}

func TestKernelNode_SimulateDeploymentFailure(t *testing.T) {
	n := New("node-1.internal", 8080, "staging")
	n.SimulateDeploymentFailure = true

	result := n.Deploy(context.Background(), module.Module{Name: "checkout", Version: "1.0.0"})
	if result.Success {
		t.Fatal("Deploy() success = true, want false")
	}
	if n.State() != Failed {
		t.Errorf("State() = %v, want Failed", n.State())
	}
}

func TestKernelNode_SimulateException(t *testing.T) {
	n := New("node-1.internal", 8080, "staging")
	n.SimulateException = true

	result := n.Deploy(context.Background(), module.Module{Name: "checkout", Version: "1.0.0"})
	if result.Success {
		t.Fatal("Deploy() success = true, want false")
	}
}

func TestKernelNode_SimulateUnhealthyAfterSuccessfulDeploy(t *testing.T) {
	n := New("node-1.internal", 8080, "staging")
	n.SimulateUnhealthy = true

	result := n.Deploy(context.Background(), module.Module{Name: "checkout", Version: "1.0.0"})
	if !result.Success {
		t.Fatal("Deploy() success = false, want true (deploy itself succeeds)")
	}
	if n.IsHealthy() {
		t.Error("IsHealthy() = true, want false for a simulated-unhealthy node")
	}
}

func TestKernelNode_PreviousModule(t *testing.T) {
	n := New("node-1.internal", 8080, "staging")
	ctx := context.Background()

	if _, ok := n.PreviousModule(); ok {
		t.Fatal("PreviousModule() on fresh node, want ok=false")
	}

	n.Deploy(ctx, module.Module{Name: "checkout", Version: "1.0.0"})
	n.Deploy(ctx, module.Module{Name: "checkout", Version: "2.0.0"})

	prev, ok := n.PreviousModule()
	if !ok || prev.Version != "1.0.0" {
		t.Errorf("PreviousModule() = %+v, %v, want 1.0.0, true", prev, ok)
	}
}

func TestKernelNode_PreviousModule_PicksNextLowerSemverNotPriorSlot(t *testing.T) {
	n := New("node-1.internal", 8080, "staging")
	ctx := context.Background()

	// Out-of-order history, as concurrent deploys can produce: the slot
	// immediately before the current entry (2.0.0) is a *higher* version
	// than the current module, so a naive "len-2" lookup would pick it as
	// the rollback target even though it isn't a previous version at all.
	n.Deploy(ctx, module.Module{Name: "checkout", Version: "1.0.0"})
	n.Deploy(ctx, module.Module{Name: "checkout", Version: "2.0.0"})
	n.Deploy(ctx, module.Module{Name: "checkout", Version: "1.5.0"})

	prev, ok := n.PreviousModule()
	if !ok || prev.Version != "1.0.0" {
		t.Errorf("PreviousModule() = %+v, %v, want the next-lower version 1.0.0, not the prior slice element 2.0.0", prev, ok)
	}
}
