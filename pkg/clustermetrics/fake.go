package clustermetrics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FakeProvider is a mutex-guarded, in-memory Provider used by tests and by
// single-node/dev deployments that have no real monitoring backend wired up
// yet. Readings are set explicitly via SetNode; GetClusterMetrics aggregates
// whatever nodes are currently known.
type FakeProvider struct {
	mu    sync.Mutex
	nodes map[uuid.UUID]NodeSnapshot
	now   func() time.Time
}

// NewFakeProvider creates an empty FakeProvider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		nodes: make(map[uuid.UUID]NodeSnapshot),
		now:   time.Now,
	}
}

// SetNode records (or overwrites) a node's current reading.
func (f *FakeProvider) SetNode(snap NodeSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[snap.NodeID] = snap
}

// SetAll replaces every tracked node's reading at once.
func (f *FakeProvider) SetAll(snaps []NodeSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = make(map[uuid.UUID]NodeSnapshot, len(snaps))
	for _, s := range snaps {
		f.nodes[s.NodeID] = s
	}
}

func (f *FakeProvider) GetClusterMetrics(_ context.Context, _ string) (ClusterSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]NodeSnapshot, 0, len(f.nodes))
	for _, n := range f.nodes {
		all = append(all, n)
	}
	return Aggregate(all, f.now()), nil
}

func (f *FakeProvider) GetNodesMetrics(_ context.Context, nodeIDs []uuid.UUID) ([]NodeSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]NodeSnapshot, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if n, ok := f.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}
