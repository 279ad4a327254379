// Package registry implements the schema lifecycle state machine (C4):
// Draft -> PendingApproval -> Approved/Rejected -> Deprecated.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is a schema's position in the approval lifecycle.
type Status string

const (
	Draft           Status = "draft"
	PendingApproval Status = "pending_approval"
	Approved        Status = "approved"
	Rejected        Status = "rejected"
	Deprecated      Status = "deprecated"
)

// Compatibility selects which compatibility mode a schema's successor is
// checked against (pkg/schema/compat).
type Compatibility string

const (
	CompatNone     Compatibility = "none"
	CompatBackward Compatibility = "backward"
	CompatForward  Compatibility = "forward"
	CompatFull     Compatibility = "full"
)

// MessageSchema is a single registered schema version.
type MessageSchema struct {
	SchemaID         string        `json:"schema_id" validate:"required"`
	FamilyID         string        `json:"family_id" validate:"required"` // logical schema name shared across versions
	SchemaDefinition string        `json:"schema_definition" validate:"required"`
	Version          string        `json:"version"`
	Status           Status        `json:"status"`
	Compatibility    Compatibility `json:"compatibility"`
	CreatedAt        time.Time     `json:"created_at"`
	ApprovedBy       string        `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time    `json:"approved_at,omitempty"`
}

// Persister optionally checkpoints registry mutations to durable storage.
// The registry works correctly (in-memory only) with a nil Persister, so
// the in-memory logic never depends on an optional backing store being
// present.
type Persister interface {
	SaveSchema(ctx context.Context, s MessageSchema) error
}

// Registry is a single-writer-many-readers, mutex-guarded schema store
// (shared-resource policy: "mutations are serialised under a
// registry-wide lock").
type Registry struct {
	mu        sync.RWMutex
	byID      map[string]MessageSchema
	persister Persister
}

// New creates an empty Registry. persister may be nil.
func New(persister Persister) *Registry {
	return &Registry{
		byID:      make(map[string]MessageSchema),
		persister: persister,
	}
}

// Register adds a new schema in Draft status.
func (r *Registry) Register(ctx context.Context, s MessageSchema) error {
	if s.SchemaID == "" {
		return fmt.Errorf("%w: schema id must not be empty", ErrInvalidArgument)
	}
	if s.SchemaDefinition == "" {
		return fmt.Errorf("%w: schema definition must not be blank", ErrInvalidArgument)
	}

	r.mu.Lock()
	if _, exists := r.byID[s.SchemaID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: schema id %q already registered", ErrConflict, s.SchemaID)
	}

	s.Status = Draft
	s.CreatedAt = time.Now()
	r.byID[s.SchemaID] = s
	r.mu.Unlock()

	return r.persist(ctx, s)
}

// Get returns a schema by id.
func (r *Registry) Get(_ context.Context, id string) (MessageSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// LatestApproved returns the most recently approved schema for a family,
// which SchemaApprovalService diffs new versions against. Returns
// (_, false) if the family has never had an approved version — the signal
// the approval service uses to auto-approve a schema's first version.
func (r *Registry) LatestApproved(_ context.Context, familyID string) (MessageSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		latest MessageSchema
		found  bool
	)
	for _, s := range r.byID {
		if s.FamilyID != familyID || s.Status != Approved {
			continue
		}
		if !found || (s.ApprovedAt != nil && latest.ApprovedAt != nil && s.ApprovedAt.After(*latest.ApprovedAt)) {
			latest = s
			found = true
		}
	}
	return latest, found
}

// UpdateStatus transitions a schema to newStatus. Transitioning to Approved
// requires a non-empty actor and records ApprovedBy/ApprovedAt. All other
// transitions are permitted from any source state — policy enforcement
// (which source states are legal for Approve/Reject/Deprecate) is the
// approval service's job.
func (r *Registry) UpdateStatus(ctx context.Context, id string, newStatus Status, actor string) error {
	if newStatus == Approved && actor == "" {
		return fmt.Errorf("%w: approving a schema requires a non-empty actor", ErrInvalidArgument)
	}

	r.mu.Lock()
	s, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: schema id %q not found", ErrNotFound, id)
	}

	s.Status = newStatus
	if newStatus == Approved {
		s.ApprovedBy = actor
		now := time.Now()
		s.ApprovedAt = &now
	}
	r.byID[id] = s
	r.mu.Unlock()

	return r.persist(ctx, s)
}

// Delete removes a schema. Only Draft schemas may be deleted (Approved,
// Deprecated, Pending, and Rejected deletion is an illegal state error).
func (r *Registry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: schema id %q not found", ErrNotFound, id)
	}
	if s.Status != Draft {
		return fmt.Errorf("%w: cannot delete schema %q in status %s", ErrIllegalState, id, s.Status)
	}

	delete(r.byID, id)
	return nil
}

func (r *Registry) persist(ctx context.Context, s MessageSchema) error {
	if r.persister == nil {
		return nil
	}
	return r.persister.SaveSchema(ctx, s)
}
