package kernelnode

import (
	"context"
	"errors"
	"testing"

	"github.com/coreshift/switchyard/pkg/module"
)

func TestEnvironmentCluster_AddNodeRejectsMismatchedEnvironment(t *testing.T) {
	c := NewEnvironmentCluster("production")
	n := New("node-1", 8080, "staging")

	err := c.AddNode(n)
	if err == nil {
		t.Fatal("AddNode() error = nil, want error for mismatched environment")
	}
	var target error
	if errors.As(err, &target) && len(c.Nodes()) != 0 {
		t.Error("AddNode() should not attach a mismatched node")
	}
}

func TestEnvironmentCluster_ClusterHealth(t *testing.T) {
	c := NewEnvironmentCluster("production")
	ctx := context.Background()

	healthy := New("node-1", 8080, "production")
	healthy.Deploy(ctx, module.Module{Name: "checkout", Version: "1.0.0"})

	unhealthy := New("node-2", 8080, "production")
	unhealthy.SimulateDeploymentFailure = true
	unhealthy.Deploy(ctx, module.Module{Name: "checkout", Version: "1.0.0"})

	_ = c.AddNode(healthy)
	_ = c.AddNode(unhealthy)

	health := c.ClusterHealth()
	if health.TotalNodes != 2 || health.HealthyNodes != 1 || health.UnhealthyNodes != 1 {
		t.Errorf("ClusterHealth() = %+v, want {2,1,1}", health)
	}
}
