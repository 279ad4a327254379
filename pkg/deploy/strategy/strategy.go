// Package strategy implements the deployment strategies (C14): BlueGreen,
// Rolling, Canary, and Direct. Each composes kernelnode (C12) and
// stabilization (C13) to drive a cluster toward a new module version.
package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/coreshift/switchyard/pkg/kernelnode"
	"github.com/coreshift/switchyard/pkg/module"
	"github.com/coreshift/switchyard/pkg/stabilization"
)

// DefaultSmokeTestTimeout is used when Options.SmokeTestTimeout is unset.
const DefaultSmokeTestTimeout = 5 * time.Minute

// Result is the outcome of running a strategy against a cluster.
type Result struct {
	Success       bool                        `json:"success"`
	Strategy      string                      `json:"strategy"`
	Environment   string                      `json:"environment"`
	Message       string                      `json:"message"`
	NodeResults   []kernelnode.DeploymentResult `json:"node_results"`
	NodesDeployed int                         `json:"nodes_deployed"`
	NodesFailed   int                         `json:"nodes_failed"`
	StartTime     time.Time                   `json:"start_time"`
	EndTime       time.Time                   `json:"end_time"`
}

// Strategy drives a deploy of mod across cluster.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, mod module.Module, cluster *kernelnode.EnvironmentCluster) Result
}

// Options configures the optional stabilization gate and strategy-specific
// tuning knobs. A zero-value Options runs every strategy with stabilization
// and smoke-testing skipped (stabilization requires an explicit *Service).
type Options struct {
	Stabilization       *stabilization.Service
	StabilizationConfig stabilization.Config
	SmokeTestTimeout    time.Duration
	BatchSize           int
	FailureThreshold    int
	CanarySoakTime      time.Duration
}

func (o Options) smokeTestTimeout() time.Duration {
	if o.SmokeTestTimeout > 0 {
		return o.SmokeTestTimeout
	}
	return DefaultSmokeTestTimeout
}

// deployParallel deploys mod to every node concurrently, returning results
// in the same order as nodes.
func deployParallel(ctx context.Context, nodes []*kernelnode.KernelNode, mod module.Module) []kernelnode.DeploymentResult {
	results := make([]kernelnode.DeploymentResult, len(nodes))
	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		go func(i int, n *kernelnode.KernelNode) {
			defer wg.Done()
			results[i] = n.Deploy(ctx, mod)
		}(i, n)
	}
	wg.Wait()
	return results
}

func countFailed(results []kernelnode.DeploymentResult) int {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	return failed
}

func finalize(result Result, start time.Time) Result {
	result.NodesDeployed = len(result.NodeResults) - countFailed(result.NodeResults)
	result.NodesFailed = countFailed(result.NodeResults)
	result.StartTime = start
	result.EndTime = time.Now()
	return result
}
