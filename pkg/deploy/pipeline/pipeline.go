// Package pipeline implements the deployment pipeline orchestrator and its
// execution tracker (C15): Validate -> ApprovalGate -> PreDeployHealth ->
// Deploy -> Stabilize -> Verify -> Commit/Rollback.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/internal/telemetry"
	"github.com/coreshift/switchyard/pkg/clustermetrics"
	"github.com/coreshift/switchyard/pkg/deploy/strategy"
	"github.com/coreshift/switchyard/pkg/kernelnode"
	"github.com/coreshift/switchyard/pkg/module"
)

// Stage names, in pipeline order.
const (
	StageValidate        = "validate"
	StageApprovalGate     = "approval_gate"
	StagePreDeployHealth  = "pre_deploy_health"
	StageDeploy           = "deploy"
	StageStabilize        = "stabilize"
	StageVerify           = "verify"
	StageCommit           = "commit"
	StageRollback         = "rollback"
)

// State is an execution's position in the pipeline lifecycle.
type State string

const (
	StatePending         State = "pending"
	StateRunning         State = "running"
	StatePendingApproval State = "pending_approval"
	StateSucceeded       State = "succeeded"
	StateFailed          State = "failed"
	StateRolledBack      State = "rolled_back"
)

// DefaultApprovalTimeout is used when Options.ApprovalTimeout is unset.
const DefaultApprovalTimeout = 15 * time.Minute

// DefaultVerifyMinHealthyFraction is the minimum fraction of cluster nodes
// that must report healthy for the Verify stage to pass.
const DefaultVerifyMinHealthyFraction = 0.5

// StageResult records one pipeline stage's outcome.
type StageResult struct {
	Stage      string    `json:"stage"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Execution is the full record of one deployment run, as returned by the
// Tracker.
type Execution struct {
	ExecutionID   uuid.UUID     `json:"execution_id"`
	Module        module.Module `json:"module"`
	Environment   string        `json:"environment"`
	Strategy      string        `json:"strategy"`
	State         State         `json:"state"`
	Stages        []StageResult `json:"stages"`
	NodesDeployed int           `json:"nodes_deployed"`
	NodesFailed   int           `json:"nodes_failed"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Notifier delivers an operator-facing message about a pipeline outcome.
// pkg/notify's Slack adapter implements this.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, string) error { return nil }

// Options tunes the orchestrator's gates and thresholds. The zero value
// skips the approval gate and uses the package defaults for everything
// else.
type Options struct {
	RequireApproval          bool
	ApprovalTimeout          time.Duration
	PreDeployMinHealthyNodes int
	VerifyMinHealthyFraction float64
	// StrategyOptions is shared with every registered strategy's own
	// Options, so the pipeline's own Stabilize stage (for strategies that
	// don't already stabilize internally) uses the same
	// stabilization.Service and Config as blue-green does.
	StrategyOptions strategy.Options
}

func (o Options) approvalTimeout() time.Duration {
	if o.ApprovalTimeout > 0 {
		return o.ApprovalTimeout
	}
	return DefaultApprovalTimeout
}

func (o Options) preDeployMinHealthy() int {
	if o.PreDeployMinHealthyNodes > 0 {
		return o.PreDeployMinHealthyNodes
	}
	return 1
}

func (o Options) verifyMinHealthyFraction() float64 {
	if o.VerifyMinHealthyFraction > 0 {
		return o.VerifyMinHealthyFraction
	}
	return DefaultVerifyMinHealthyFraction
}

// Orchestrator drives Execution records through the pipeline stages against
// a set of per-environment clusters and named strategies.
type Orchestrator struct {
	clusters   map[string]*kernelnode.EnvironmentCluster
	strategies map[string]strategy.Strategy
	tracker    *Tracker
	gate       *ApprovalGate
	notifier   Notifier
	logger     *slog.Logger
	options    Options
	now        func() time.Time
}

// New builds an Orchestrator. Clusters and strategies are registered after
// construction via RegisterCluster/RegisterStrategy.
func New(tracker *Tracker, gate *ApprovalGate, notifier Notifier, logger *slog.Logger, opts Options) *Orchestrator {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		clusters:   make(map[string]*kernelnode.EnvironmentCluster),
		strategies: make(map[string]strategy.Strategy),
		tracker:    tracker,
		gate:       gate,
		notifier:   notifier,
		logger:     logger,
		options:    opts,
		now:        time.Now,
	}
}

// RegisterCluster attaches a cluster the orchestrator can deploy to, keyed
// by its environment name.
func (o *Orchestrator) RegisterCluster(cluster *kernelnode.EnvironmentCluster) {
	o.clusters[cluster.Environment] = cluster
}

// RegisterStrategy makes a named strategy available to CreateDeployment.
func (o *Orchestrator) RegisterStrategy(s strategy.Strategy) {
	o.strategies[s.Name()] = s
}

// CreateDeployment starts and runs a new pipeline execution to completion
// (including blocking on the approval gate, if configured), returning the
// final Execution record. A non-nil error indicates the run was aborted by
// context cancellation, not a normal pipeline failure — pipeline failures
// are reported via Execution.State and a non-nil error is not returned for
// them.
func (o *Orchestrator) CreateDeployment(ctx context.Context, mod module.Module, environment, strategyName string) (Execution, error) {
	exec := Execution{
		ExecutionID: uuid.New(),
		Module:      mod,
		Environment: environment,
		Strategy:    strategyName,
		State:       StatePending,
		CreatedAt:   o.now(),
		UpdatedAt:   o.now(),
	}
	o.tracker.put(exec)

	if ok, err := o.runValidate(ctx, &exec); !ok {
		return o.finish(exec), err
	}

	if ok, err := o.runApprovalGate(ctx, &exec); !ok {
		return o.finish(exec), err
	}

	cluster := o.clusters[environment]

	if ok, err := o.runPreDeployHealth(ctx, &exec, cluster); !ok {
		return o.finish(exec), err
	}

	var baseline clustermetrics.ClusterSnapshot
	selfStabilizes := strategyName == "blue-green" && o.options.StrategyOptions.Stabilization != nil
	needsOwnStabilization := o.options.StrategyOptions.Stabilization != nil && !selfStabilizes
	if needsOwnStabilization {
		snap, err := o.options.StrategyOptions.Stabilization.Baseline(ctx, environment)
		if err == nil {
			baseline = snap
		}
	}

	_, ok, err := o.runDeploy(ctx, &exec, cluster, mod, strategyName)
	if !ok {
		if err != nil {
			return o.finish(exec), err
		}
		o.runRollback(ctx, &exec, cluster)
		return o.finish(exec), nil
	}

	if needsOwnStabilization {
		if ok, err := o.runStabilize(ctx, &exec, cluster, baseline); !ok {
			if err != nil {
				return o.finish(exec), err
			}
			o.runRollback(ctx, &exec, cluster)
			return o.finish(exec), nil
		}
	}

	if ok, err := o.runVerify(ctx, &exec, cluster); !ok {
		if err != nil {
			return o.finish(exec), err
		}
		o.runRollback(ctx, &exec, cluster)
		return o.finish(exec), nil
	}

	o.runCommit(&exec)
	return o.finish(exec), nil
}

// RollbackDeployment rolls back a previously committed execution on demand
// (an operator-triggered rollback, as opposed to the pipeline's own
// post-deploy rollback).
func (o *Orchestrator) RollbackDeployment(ctx context.Context, executionID uuid.UUID) (Execution, error) {
	exec, ok := o.tracker.GetResult(executionID)
	if !ok {
		return Execution{}, fmt.Errorf("execution %s not found", executionID)
	}
	cluster, ok := o.clusters[exec.Environment]
	if !ok {
		return Execution{}, fmt.Errorf("unknown environment %q", exec.Environment)
	}
	o.runRollback(ctx, &exec, cluster)
	return o.finish(exec), nil
}

func (o *Orchestrator) finish(exec Execution) Execution {
	exec.UpdatedAt = o.now()
	o.tracker.put(exec)
	telemetry.PipelineExecutionsTotal.WithLabelValues(string(exec.State), exec.Strategy).Inc()
	if exec.State == StateFailed || exec.State == StateRolledBack {
		o.notify(context.Background(), exec)
	}
	return exec
}

func (o *Orchestrator) notify(ctx context.Context, exec Execution) {
	subject := fmt.Sprintf("Deployment %s: %s", exec.State, exec.Module.Name)
	body := fmt.Sprintf("Execution %s deploying %s@%s to %s ended in state %s.",
		exec.ExecutionID, exec.Module.Name, exec.Module.Version, exec.Environment, exec.State)
	if len(exec.Stages) > 0 {
		last := exec.Stages[len(exec.Stages)-1]
		body += fmt.Sprintf(" Last stage %q: %s", last.Stage, last.Message)
	}
	if err := o.notifier.Notify(ctx, subject, body); err != nil {
		o.logger.Error("failed to send pipeline notification", "execution_id", exec.ExecutionID, "error", err)
	}
}

func (o *Orchestrator) recordStage(exec *Execution, stage string, success bool, message string, started time.Time) {
	result := StageResult{
		Stage:      stage,
		Success:    success,
		Message:    message,
		StartedAt:  started,
		FinishedAt: o.now(),
	}
	exec.Stages = append(exec.Stages, result)
	exec.UpdatedAt = o.now()
	o.tracker.put(*exec)

	status := "success"
	if !success {
		status = "failure"
	}
	telemetry.PipelineStagesTotal.WithLabelValues(stage, status).Inc()
}

func (o *Orchestrator) runValidate(ctx context.Context, exec *Execution) (bool, error) {
	start := o.now()
	exec.State = StateRunning

	if err := exec.Module.Validate(); err != nil {
		o.recordStage(exec, StageValidate, false, err.Error(), start)
		exec.State = StateFailed
		return false, nil
	}
	if _, ok := o.clusters[exec.Environment]; !ok {
		o.recordStage(exec, StageValidate, false, fmt.Sprintf("unknown environment %q", exec.Environment), start)
		exec.State = StateFailed
		return false, nil
	}
	if _, ok := o.strategies[exec.Strategy]; !ok {
		o.recordStage(exec, StageValidate, false, fmt.Sprintf("unknown strategy %q", exec.Strategy), start)
		exec.State = StateFailed
		return false, nil
	}
	o.recordStage(exec, StageValidate, true, "module and target validated", start)
	return true, nil
}

func (o *Orchestrator) runApprovalGate(ctx context.Context, exec *Execution) (bool, error) {
	if !o.options.RequireApproval {
		return true, nil
	}

	start := o.now()
	exec.State = StatePendingApproval
	exec.UpdatedAt = o.now()
	o.tracker.put(*exec)

	approved, err := o.gate.Wait(ctx, exec.ExecutionID, o.options.approvalTimeout())
	if err != nil {
		o.recordStage(exec, StageApprovalGate, false, fmt.Sprintf("approval wait cancelled: %v", err), start)
		exec.State = StateFailed
		return false, err
	}
	if !approved {
		o.recordStage(exec, StageApprovalGate, false, "approval denied or timed out", start)
		exec.State = StateFailed
		return false, nil
	}
	o.recordStage(exec, StageApprovalGate, true, "deployment approved", start)
	return true, nil
}

func (o *Orchestrator) runPreDeployHealth(ctx context.Context, exec *Execution, cluster *kernelnode.EnvironmentCluster) (bool, error) {
	start := o.now()
	health := cluster.ClusterHealth()
	if health.HealthyNodes < o.options.preDeployMinHealthy() {
		o.recordStage(exec, StagePreDeployHealth, false,
			fmt.Sprintf("cluster has %d healthy node(s), need at least %d", health.HealthyNodes, o.options.preDeployMinHealthy()), start)
		exec.State = StateFailed
		return false, nil
	}
	o.recordStage(exec, StagePreDeployHealth, true, fmt.Sprintf("%d healthy node(s) available", health.HealthyNodes), start)
	return true, nil
}

func (o *Orchestrator) runDeploy(ctx context.Context, exec *Execution, cluster *kernelnode.EnvironmentCluster, mod module.Module, strategyName string) (strategy.Result, bool, error) {
	start := o.now()
	strat := o.strategies[strategyName]
	result := strat.Execute(ctx, mod, cluster)

	exec.NodesDeployed = result.NodesDeployed
	exec.NodesFailed = result.NodesFailed

	if !result.Success {
		o.recordStage(exec, StageDeploy, false, result.Message, start)
		return result, false, nil
	}
	o.recordStage(exec, StageDeploy, true, result.Message, start)
	return result, true, nil
}

func (o *Orchestrator) runStabilize(ctx context.Context, exec *Execution, cluster *kernelnode.EnvironmentCluster, baseline clustermetrics.ClusterSnapshot) (bool, error) {
	start := o.now()
	svc := o.options.StrategyOptions.Stabilization
	ids := kernelnodeIDs(cluster)

	result, err := svc.WaitForStabilization(ctx, ids, baseline, o.options.StrategyOptions.StabilizationConfig)
	if err != nil {
		o.recordStage(exec, StageStabilize, false, fmt.Sprintf("stabilization check errored: %v", err), start)
		return false, err
	}
	if !result.IsStable {
		o.recordStage(exec, StageStabilize, false, "cluster did not stabilize within the allotted time", start)
		return false, nil
	}
	o.recordStage(exec, StageStabilize, true, "cluster stabilized", start)
	return true, nil
}

func (o *Orchestrator) runVerify(ctx context.Context, exec *Execution, cluster *kernelnode.EnvironmentCluster) (bool, error) {
	start := o.now()
	health := cluster.ClusterHealth()
	fraction := 0.0
	if health.TotalNodes > 0 {
		fraction = float64(health.HealthyNodes) / float64(health.TotalNodes)
	}
	if fraction < o.options.verifyMinHealthyFraction() {
		o.recordStage(exec, StageVerify, false,
			fmt.Sprintf("only %.0f%% of nodes healthy, need at least %.0f%%", fraction*100, o.options.verifyMinHealthyFraction()*100), start)
		return false, nil
	}
	o.recordStage(exec, StageVerify, true, fmt.Sprintf("%.0f%% of nodes healthy", fraction*100), start)
	return true, nil
}

func (o *Orchestrator) runCommit(exec *Execution) {
	start := o.now()
	exec.State = StateSucceeded
	o.recordStage(exec, StageCommit, true, "deployment committed", start)
}

func (o *Orchestrator) runRollback(ctx context.Context, exec *Execution, cluster *kernelnode.EnvironmentCluster) {
	start := o.now()
	nodes := cluster.Nodes()
	failed := 0
	for _, n := range nodes {
		if n.IsHealthy() {
			continue
		}
		prev, ok := n.PreviousModule()
		if !ok {
			failed++
			continue
		}
		if res := n.Deploy(ctx, prev); !res.Success {
			failed++
		}
	}

	if failed > 0 {
		o.recordStage(exec, StageRollback, false, fmt.Sprintf("rollback failed on %d node(s)", failed), start)
		exec.State = StateFailed
		return
	}
	o.recordStage(exec, StageRollback, true, "rolled back to previous module version", start)
	exec.State = StateRolledBack
}

func kernelnodeIDs(cluster *kernelnode.EnvironmentCluster) []uuid.UUID {
	nodes := cluster.Nodes()
	ids := make([]uuid.UUID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.NodeID
	}
	return ids
}
