package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/clustermetrics"
	"github.com/coreshift/switchyard/pkg/kernelnode"
	"github.com/coreshift/switchyard/pkg/module"
)

// BlueGreenStrategy deploys to every node in the cluster (the "green"
// environment) before any traffic moves. If resource stabilization is
// configured, it snapshots a baseline first and waits for the newly deployed
// nodes to settle; only then does it run a smoke test. Any failure along
// the way leaves traffic on the existing ("blue") deployment.
type BlueGreenStrategy struct {
	Options Options
}

func (s BlueGreenStrategy) Name() string { return "blue-green" }

func (s BlueGreenStrategy) Execute(ctx context.Context, mod module.Module, cluster *kernelnode.EnvironmentCluster) Result {
	start := time.Now()
	nodes := cluster.Nodes()
	result := Result{Strategy: s.Name(), Environment: cluster.Environment}

	if len(nodes) == 0 {
		result.Message = "No nodes available"
		return finalize(result, start)
	}

	var baseline clustermetrics.ClusterSnapshot
	stabilize := s.Options.Stabilization != nil
	if stabilize {
		snap, err := s.Options.Stabilization.Baseline(ctx, cluster.Environment)
		if err != nil {
			result.Message = fmt.Sprintf("Failed to snapshot baseline metrics: %v", err)
			return finalize(result, start)
		}
		baseline = snap
	}

	nodeResults := deployParallel(ctx, nodes, mod)
	result.NodeResults = nodeResults
	if failed := countFailed(nodeResults); failed > 0 {
		result.Message = fmt.Sprintf("Deployment to green environment failed: %d node(s)", failed)
		return finalize(result, start)
	}

	if stabilize {
		stabResult, err := s.Options.Stabilization.WaitForStabilization(ctx, nodeIDsOf(nodes), baseline, s.Options.StabilizationConfig)
		if err != nil {
			result.Message = fmt.Sprintf("Stabilization check errored: %v. Not switching traffic", err)
			return finalize(result, start)
		}
		if !stabResult.IsStable {
			result.Message = "Green environment did not stabilize within the allotted time. Not switching traffic"
			return finalize(result, start)
		}
	}

	smokeCtx, cancel := context.WithTimeout(ctx, s.Options.smokeTestTimeout())
	defer cancel()
	if !smokeTestHealthy(smokeCtx, nodes) {
		result.Message = "Smoke tests failed. Traffic remains on blue environment"
		return finalize(result, start)
	}

	result.Success = true
	result.Message = fmt.Sprintf("Successfully deployed to %d node(s) using blue-green strategy", len(nodes))
	return finalize(result, start)
}

func nodeIDsOf(nodes []*kernelnode.KernelNode) []uuid.UUID {
	ids := make([]uuid.UUID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.NodeID
	}
	return ids
}

// smokeTestHealthy reports whether every node probes healthy before ctx is
// done. Health is polled rather than sampled once so a node still settling
// from Deploying has a chance to finish before the deadline.
func smokeTestHealthy(ctx context.Context, nodes []*kernelnode.KernelNode) bool {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if allHealthy(nodes) {
			return true
		}
		select {
		case <-ctx.Done():
			return allHealthy(nodes)
		case <-ticker.C:
		}
	}
}

func allHealthy(nodes []*kernelnode.KernelNode) bool {
	for _, n := range nodes {
		if !n.IsHealthy() {
			return false
		}
	}
	return true
}
