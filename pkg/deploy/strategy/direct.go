package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/coreshift/switchyard/pkg/kernelnode"
	"github.com/coreshift/switchyard/pkg/module"
)

// DirectStrategy deploys to every node in parallel with no smoke test and
// no stabilization gate. It is the fastest, least cautious strategy.
type DirectStrategy struct {
	Options Options
}

func (s DirectStrategy) Name() string { return "direct" }

func (s DirectStrategy) Execute(ctx context.Context, mod module.Module, cluster *kernelnode.EnvironmentCluster) Result {
	start := time.Now()
	nodes := cluster.Nodes()
	result := Result{Strategy: s.Name(), Environment: cluster.Environment}

	if len(nodes) == 0 {
		result.Message = "No nodes available"
		return finalize(result, start)
	}

	result.NodeResults = deployParallel(ctx, nodes, mod)
	result = finalize(result, start)

	if result.NodesFailed > 0 {
		result.Success = false
		result.Message = fmt.Sprintf("Direct deployment failed: %d node(s)", result.NodesFailed)
		return result
	}

	result.Success = true
	result.Message = fmt.Sprintf("Successfully deployed to %d node(s) using direct strategy", result.NodesDeployed)
	return result
}
