// Package clustermetrics defines the MetricsProvider interface (C1) that the
// deployment pipeline's resource-stabilization gate (pkg/stabilization)
// polls for per-node and per-cluster resource snapshots.
package clustermetrics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NodeSnapshot is a single node's resource/latency/error reading at a point
// in time.
type NodeSnapshot struct {
	NodeID     uuid.UUID
	CPUPercent float64
	MemPercent float64
	LatencyMs  float64
	ErrorRate  float64
	SampledAt  time.Time
}

// ClusterSnapshot is the aggregate reading across a set of nodes.
type ClusterSnapshot struct {
	AvgCPUPercent float64
	AvgMemPercent float64
	AvgLatencyMs  float64
	AvgErrorRate  float64
	NodeCount     int
	SampledAt     time.Time
}

// Provider supplies resource metrics for nodes and clusters (C1). Real
// implementations typically query a monitoring backend (Prometheus,
// CloudWatch, ...); Switchyard's core only depends on this interface.
type Provider interface {
	// GetClusterMetrics returns the aggregate snapshot for every node
	// currently in the named environment.
	GetClusterMetrics(ctx context.Context, environment string) (ClusterSnapshot, error)

	// GetNodesMetrics returns a snapshot for each requested node id. A
	// missing node is omitted from the result rather than erroring the
	// whole call.
	GetNodesMetrics(ctx context.Context, nodeIDs []uuid.UUID) ([]NodeSnapshot, error)
}

// Aggregate computes a ClusterSnapshot from individual node snapshots. It is
// exported so Provider implementations and tests can build a ClusterSnapshot
// consistently without duplicating the averaging logic.
func Aggregate(nodes []NodeSnapshot, sampledAt time.Time) ClusterSnapshot {
	if len(nodes) == 0 {
		return ClusterSnapshot{SampledAt: sampledAt}
	}

	var cpu, mem, lat, errRate float64
	for _, n := range nodes {
		cpu += n.CPUPercent
		mem += n.MemPercent
		lat += n.LatencyMs
		errRate += n.ErrorRate
	}
	count := float64(len(nodes))

	return ClusterSnapshot{
		AvgCPUPercent: cpu / count,
		AvgMemPercent: mem / count,
		AvgLatencyMs:  lat / count,
		AvgErrorRate:  errRate / count,
		NodeCount:     len(nodes),
		SampledAt:     sampledAt,
	}
}
