package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/coreshift/switchyard/pkg/clustermetrics"
	"github.com/coreshift/switchyard/pkg/kernelnode"
	"github.com/coreshift/switchyard/pkg/module"
)

// DefaultCanarySoakTime is used when Options.CanarySoakTime is unset.
const DefaultCanarySoakTime = 30 * time.Second

// CanaryStrategy deploys to a single node first, soaks it (optionally
// gated on resource stabilization), and only promotes the remaining nodes
// via RollingStrategy once the canary proves healthy.
type CanaryStrategy struct {
	Options Options
}

func (s CanaryStrategy) Name() string { return "canary" }

func (s CanaryStrategy) Execute(ctx context.Context, mod module.Module, cluster *kernelnode.EnvironmentCluster) Result {
	start := time.Now()
	nodes := cluster.Nodes()
	result := Result{Strategy: s.Name(), Environment: cluster.Environment}

	if len(nodes) == 0 {
		result.Message = "No nodes available"
		return finalize(result, start)
	}

	canary := nodes[0]
	rest := nodes[1:]

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

	canaryResult := canary.Deploy(ctx, mod)
	result.NodeResults = append(result.NodeResults, canaryResult)
	if !canaryResult.Success {
		result.Message = "Canary deployment failed, remaining nodes untouched"
		return finalize(result, start)
	}

	if stabilize {
		stabResult, err := s.Options.Stabilization.WaitForStabilization(ctx, nodeIDsOf([]*kernelnode.KernelNode{canary}), baseline, s.Options.StabilizationConfig)
		if err != nil {
			result.Message = fmt.Sprintf("Canary stabilization check errored: %v. Remaining nodes untouched", err)
			return finalize(result, start)
		}
		if !stabResult.IsStable {
			result.Message = "Canary did not stabilize within the allotted time. Remaining nodes untouched"
			return finalize(result, start)
		}
	} else {
		soak := s.Options.CanarySoakTime
		if soak <= 0 {
			soak = DefaultCanarySoakTime
		}
		timer := time.NewTimer(soak)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			result.Message = fmt.Sprintf("Canary soak cancelled: %v", ctx.Err())
			return finalize(result, start)
		case <-timer.C:
		}
	}

	if !canary.IsHealthy() {
		result.Message = "Canary failed health check after soak, remaining nodes untouched"
		return finalize(result, start)
	}

	if len(rest) == 0 {
		result.Success = true
		result.Message = "Successfully deployed to 1 node(s) using canary strategy"
		return finalize(result, start)
	}

	restCluster := kernelnode.NewEnvironmentCluster(cluster.Environment)
	for _, n := range rest {
		_ = restCluster.AddNode(n)
	}
	rollout := RollingStrategy{Options: s.Options}.Execute(ctx, mod, restCluster)
	result.NodeResults = append(result.NodeResults, rollout.NodeResults...)

	result = finalize(result, start)
	if !rollout.Success {
		result.Success = false
		result.Message = fmt.Sprintf("Canary succeeded but promotion failed: %s", rollout.Message)
		return result
	}

	result.Success = true
	result.Message = fmt.Sprintf("Successfully deployed to %d node(s) using canary strategy", len(nodes))
	return result
}
