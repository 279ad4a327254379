package kernelnode

import (
	"fmt"
	"sync"
)

// ClusterHealth is an aggregate view of an EnvironmentCluster's nodes.
type ClusterHealth struct {
	TotalNodes     int `json:"total_nodes"`
	HealthyNodes   int `json:"healthy_nodes"`
	UnhealthyNodes int `json:"unhealthy_nodes"`
}

// EnvironmentCluster owns a set of nodes, all belonging to the same
// environment. Node membership is exclusive: a node may belong to exactly
// one cluster at a time.
type EnvironmentCluster struct {
	Environment string

	mu    sync.RWMutex
	nodes []*KernelNode
}

// NewEnvironmentCluster creates an empty cluster for environment.
func NewEnvironmentCluster(environment string) *EnvironmentCluster {
	return &EnvironmentCluster{Environment: environment}
}

// AddNode attaches a node to the cluster, rejecting one whose Environment
// doesn't match the cluster's (the invariant every node.environment ==
// cluster.environment).
func (c *EnvironmentCluster) AddNode(node *KernelNode) error {
	if node.Environment != c.Environment {
		return fmt.Errorf("node %s belongs to environment %q, not cluster environment %q", node.NodeID, node.Environment, c.Environment)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = append(c.nodes, node)
	return nil
}

// Nodes returns a copy of the cluster's node slice.
func (c *EnvironmentCluster) Nodes() []*KernelNode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*KernelNode, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// ClusterHealth polls every node's health and returns the aggregate.
func (c *EnvironmentCluster) ClusterHealth() ClusterHealth {
	nodes := c.Nodes()
	health := ClusterHealth{TotalNodes: len(nodes)}
	for _, n := range nodes {
		if n.IsHealthy() {
			health.HealthyNodes++
		} else {
			health.UnhealthyNodes++
		}
	}
	return health
}
