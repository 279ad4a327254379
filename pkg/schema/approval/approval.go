// Package approval implements the SchemaApprovalService (C6): the workflow
// that decides whether a new schema version may go live automatically or
// needs a human sign-off, using the registry (C4) and compatibility checker
// (C5).
package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreshift/switchyard/pkg/schema/compat"
	"github.com/coreshift/switchyard/pkg/schema/registry"
)

// autoApprovalActor is recorded as ApprovedBy when the service approves a
// schema without human involvement (first version of a family, or a
// compatible successor).
const autoApprovalActor = "system:auto-approval"

// Notifier is a narrow fan-out hook for approval-workflow events. pkg/notify
// implements it on top of slack-go; tests pass a no-op or recording stub.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, string) error { return nil }

// RequestStatus is an approval request's own disposition, tracked alongside
// but distinct from the schema's registry Status.
type RequestStatus string

const (
	StatusPending      RequestStatus = "pending"
	StatusApproved     RequestStatus = "approved"
	StatusRejected     RequestStatus = "rejected"
	StatusAutoApproved RequestStatus = "auto_approved"
)

// ChangeType names a kind of structural schema change that can break a
// compatibility mode.
type ChangeType string

const (
	AddedRequiredField ChangeType = "AddedRequiredField"
	RemovedField       ChangeType = "RemovedField"
	TypeChanged        ChangeType = "TypeChanged"
	RemovedEnumValue   ChangeType = "RemovedEnumValue"
	ConstraintNarrowed ChangeType = "ConstraintNarrowed"
)

// BreakingChange is one structural change that breaks the request's
// declared compatibility mode, surfaced so a human approver can see what
// they're being asked to sign off on.
type BreakingChange struct {
	ChangeType  ChangeType `json:"change_type"`
	Path        string     `json:"path"`
	Description string     `json:"description"`
}

// ApprovalRequest is the record RequestApproval produces for a candidate
// schema: whether it needs a human decision, what would break under the
// declared compatibility mode if it were forced through, and who is on the
// hook to decide.
type ApprovalRequest struct {
	SchemaID         string           `json:"schema_id"`
	RequestedBy      string           `json:"requested_by"`
	Approvers        []string         `json:"approvers"`
	RequiresApproval bool             `json:"requires_approval"`
	BreakingChanges  []BreakingChange `json:"breaking_changes,omitempty"`
	Status           RequestStatus    `json:"status"`
}

// Service orchestrates schema lifecycle transitions across the registry and
// the compatibility checker.
type Service struct {
	registry *registry.Registry
	notifier Notifier

	mu       sync.RWMutex
	requests map[string]ApprovalRequest // keyed by SchemaID
}

// New creates a Service. A nil notifier is replaced with a no-op, mirroring
// pkg/lock and pkg/schema/registry's pattern of optional collaborators.
func New(reg *registry.Registry, notifier Notifier) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{
		registry: reg,
		notifier: notifier,
		requests: make(map[string]ApprovalRequest),
	}
}

// RequestApproval registers candidate as a Draft and immediately evaluates
// it: if its family has no prior approved version, it is auto-approved (the
// first version of a schema has nothing to be incompatible with). Otherwise
// it is diffed against the family's latest approved version under mode; a
// compatible result auto-approves, a breaking result parks the schema in
// PendingApproval for one of approvers to call ApproveSchema or
// RejectSchema. requestedBy and approvers are both required: an empty
// requestedBy or an empty approvers set is an argument error, not something
// the service can default around.
func (s *Service) RequestApproval(ctx context.Context, candidate registry.MessageSchema, mode registry.Compatibility, requestedBy string, approvers []string) (ApprovalRequest, error) {
	if requestedBy == "" {
		return ApprovalRequest{}, fmt.Errorf("%w: requestedBy must not be empty", registry.ErrInvalidArgument)
	}
	if len(approvers) == 0 {
		return ApprovalRequest{}, fmt.Errorf("%w: approvers must not be empty", registry.ErrInvalidArgument)
	}

	candidate.Compatibility = mode
	if err := s.registry.Register(ctx, candidate); err != nil {
		return ApprovalRequest{}, fmt.Errorf("registering candidate schema: %w", err)
	}

	prior, hasPrior := s.registry.LatestApproved(ctx, candidate.FamilyID)
	if !hasPrior {
		return s.autoApprove(ctx, candidate, requestedBy, approvers,
			"first version of family "+candidate.FamilyID)
	}

	result, err := compat.Check(prior.SchemaDefinition, candidate.SchemaDefinition, mode)
	if err != nil {
		return ApprovalRequest{}, fmt.Errorf("checking compatibility against %q: %w", prior.SchemaID, err)
	}

	if result.Compatible {
		return s.autoApprove(ctx, candidate, requestedBy, approvers,
			fmt.Sprintf("compatible with %s under %s mode", prior.SchemaID, mode))
	}

	breaking := breakingChanges(result, mode)
	if err := s.registry.UpdateStatus(ctx, candidate.SchemaID, registry.PendingApproval, ""); err != nil {
		return ApprovalRequest{}, fmt.Errorf("parking schema pending approval: %w", err)
	}

	req := ApprovalRequest{
		SchemaID:         candidate.SchemaID,
		RequestedBy:      requestedBy,
		Approvers:        approvers,
		RequiresApproval: true,
		BreakingChanges:  breaking,
		Status:           StatusPending,
	}
	s.putRequest(req)
	s.notify(ctx, candidate, fmt.Sprintf("schema %s requires manual approval: %d breaking change(s) against %s",
		candidate.SchemaID, len(breaking), prior.SchemaID))
	return req, nil
}

func (s *Service) autoApprove(ctx context.Context, candidate registry.MessageSchema, requestedBy string, approvers []string, reason string) (ApprovalRequest, error) {
	if err := s.registry.UpdateStatus(ctx, candidate.SchemaID, registry.Approved, autoApprovalActor); err != nil {
		return ApprovalRequest{}, fmt.Errorf("auto-approving schema %q: %w", candidate.SchemaID, err)
	}

	req := ApprovalRequest{
		SchemaID:         candidate.SchemaID,
		RequestedBy:      requestedBy,
		Approvers:        approvers,
		RequiresApproval: false,
		Status:           StatusAutoApproved,
	}
	s.putRequest(req)
	s.notify(ctx, candidate, "schema auto-approved: "+reason)
	return req, nil
}

// ApproveSchema manually approves a schema sitting in PendingApproval.
func (s *Service) ApproveSchema(ctx context.Context, id, actor string) (registry.MessageSchema, error) {
	current, ok := s.registry.Get(ctx, id)
	if !ok {
		return registry.MessageSchema{}, fmt.Errorf("%w: schema id %q not found", registry.ErrNotFound, id)
	}
	if current.Status != registry.PendingApproval {
		return registry.MessageSchema{}, fmt.Errorf("%w: schema %q is %s, not pending approval", registry.ErrIllegalState, id, current.Status)
	}

	if err := s.registry.UpdateStatus(ctx, id, registry.Approved, actor); err != nil {
		return registry.MessageSchema{}, fmt.Errorf("approving schema %q: %w", id, err)
	}
	s.setRequestStatus(id, StatusApproved)
	s.notify(ctx, current, fmt.Sprintf("schema %s approved by %s", id, actor))
	return s.mustGet(ctx, id)
}

// RejectSchema manually rejects a schema sitting in PendingApproval.
func (s *Service) RejectSchema(ctx context.Context, id, actor, reason string) (registry.MessageSchema, error) {
	current, ok := s.registry.Get(ctx, id)
	if !ok {
		return registry.MessageSchema{}, fmt.Errorf("%w: schema id %q not found", registry.ErrNotFound, id)
	}
	if current.Status != registry.PendingApproval {
		return registry.MessageSchema{}, fmt.Errorf("%w: schema %q is %s, not pending approval", registry.ErrIllegalState, id, current.Status)
	}

	if err := s.registry.UpdateStatus(ctx, id, registry.Rejected, ""); err != nil {
		return registry.MessageSchema{}, fmt.Errorf("rejecting schema %q: %w", id, err)
	}
	s.setRequestStatus(id, StatusRejected)
	s.notify(ctx, current, fmt.Sprintf("schema %s rejected by %s: %s", id, actor, reason))
	return s.mustGet(ctx, id)
}

// DeprecateSchema retires a previously approved schema so it can no longer
// be the compatibility target for new versions.
func (s *Service) DeprecateSchema(ctx context.Context, id, actor string) (registry.MessageSchema, error) {
	current, ok := s.registry.Get(ctx, id)
	if !ok {
		return registry.MessageSchema{}, fmt.Errorf("%w: schema id %q not found", registry.ErrNotFound, id)
	}
	if current.Status != registry.Approved {
		return registry.MessageSchema{}, fmt.Errorf("%w: schema %q is %s, not approved", registry.ErrIllegalState, id, current.Status)
	}

	if err := s.registry.UpdateStatus(ctx, id, registry.Deprecated, ""); err != nil {
		return registry.MessageSchema{}, fmt.Errorf("deprecating schema %q: %w", id, err)
	}
	s.notify(ctx, current, fmt.Sprintf("schema %s deprecated by %s", id, actor))
	return s.mustGet(ctx, id)
}

// GetRequest returns the ApprovalRequest most recently recorded for
// schemaID.
func (s *Service) GetRequest(schemaID string) (ApprovalRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[schemaID]
	return req, ok
}

func (s *Service) putRequest(req ApprovalRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.SchemaID] = req
}

func (s *Service) setRequestStatus(schemaID string, status RequestStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[schemaID]
	if !ok {
		return
	}
	req.Status = status
	s.requests[schemaID] = req
}

func (s *Service) mustGet(ctx context.Context, id string) (registry.MessageSchema, error) {
	schema, ok := s.registry.Get(ctx, id)
	if !ok {
		return registry.MessageSchema{}, fmt.Errorf("%w: schema id %q vanished mid-transition", registry.ErrNotFound, id)
	}
	return schema, nil
}

func (s *Service) notify(ctx context.Context, schema registry.MessageSchema, body string) {
	_ = s.notifier.Notify(ctx, "schema-registry: "+schema.FamilyID, body)
}

// breakingChanges filters result's changes down to the ones that actually
// break mode, translating each into the vocabulary callers see in
// BreakingChange.
func breakingChanges(result compat.Result, mode registry.Compatibility) []BreakingChange {
	var breaks func(compat.Change) bool
	switch mode {
	case registry.CompatBackward:
		breaks = func(c compat.Change) bool { return c.BreaksBackward }
	case registry.CompatForward:
		breaks = func(c compat.Change) bool { return c.BreaksForward }
	case registry.CompatFull:
		breaks = func(c compat.Change) bool { return c.BreaksBackward || c.BreaksForward }
	default:
		breaks = func(compat.Change) bool { return false }
	}

	var out []BreakingChange
	for _, c := range result.Changes {
		if !breaks(c) {
			continue
		}
		out = append(out, BreakingChange{
			ChangeType:  changeType(c.Kind),
			Path:        "$." + c.Field,
			Description: c.Detail,
		})
	}
	return out
}

func changeType(kind compat.ChangeKind) ChangeType {
	switch kind {
	case compat.RequiredFieldAdded:
		return AddedRequiredField
	case compat.FieldRemoved:
		return RemovedField
	case compat.TypeChanged:
		return TypeChanged
	case compat.EnumValueRemoved:
		return RemovedEnumValue
	case compat.ConstraintNarrowed:
		return ConstraintNarrowed
	default:
		return ChangeType(kind)
	}
}
