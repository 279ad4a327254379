package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/coreshift/switchyard/pkg/kernelnode"
	"github.com/coreshift/switchyard/pkg/module"
)

// RollingStrategy deploys to the cluster in batches, health-checking nodes
// deployed so far between batches. If the unhealthy count after a batch
// exceeds FailureThreshold, remaining batches are aborted and the result
// reports a partial success/failure via NodesDeployed/NodesFailed.
type RollingStrategy struct {
	Options Options
}

func (s RollingStrategy) Name() string { return "rolling" }

func (s RollingStrategy) Execute(ctx context.Context, mod module.Module, cluster *kernelnode.EnvironmentCluster) Result {
	start := time.Now()
	nodes := cluster.Nodes()
	result := Result{Strategy: s.Name(), Environment: cluster.Environment}

	if len(nodes) == 0 {
		result.Message = "No nodes available"
		return finalize(result, start)
	}

	batchSize := s.Options.BatchSize
	if batchSize <= 0 {
		batchSize = int(math.Ceil(float64(len(nodes)) / 4))
		if batchSize < 1 {
			batchSize = 1
		}
	}

	aborted := false
	for i := 0; i < len(nodes); i += batchSize {
		end := i + batchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		batch := nodes[i:end]

		batchResults := deployParallel(ctx, batch, mod)
		result.NodeResults = append(result.NodeResults, batchResults...)

		unhealthy := 0
		for _, n := range nodes[:end] {
			if !n.IsHealthy() {
				unhealthy++
			}
		}
		if unhealthy > s.Options.FailureThreshold {
			aborted = true
			break
		}
	}

	result = finalize(result, start)
	if aborted || result.NodesFailed > 0 {
		result.Success = false
		result.Message = fmt.Sprintf("Rolling deployment aborted: %d deployed, %d failed", result.NodesDeployed, result.NodesFailed)
		return result
	}

	result.Success = true
	result.Message = fmt.Sprintf("Successfully deployed to %d node(s) using rolling strategy", result.NodesDeployed)
	return result
}
