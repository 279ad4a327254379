package approval

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coreshift/switchyard/internal/httpserver"
	"github.com/coreshift/switchyard/pkg/schema/registry"
)

// Handler exposes the schema approval workflow over HTTP: submitting a
// candidate schema and deciding pending approvals.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates an approval Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi.Router with all approval-workflow routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleRequestApproval)
	r.Route("/{id}", func(r chi.Router) {
		r.Post("/approve", h.handleApprove)
		r.Post("/reject", h.handleReject)
		r.Post("/deprecate", h.handleDeprecate)
	})
	return r
}

type requestApprovalRequest struct {
	Schema      registry.MessageSchema `json:"schema" validate:"required"`
	Mode        registry.Compatibility `json:"mode" validate:"required,oneof=none backward forward full"`
	RequestedBy string                 `json:"requested_by" validate:"required"`
	Approvers   []string               `json:"approvers" validate:"required,min=1"`
}

func (h *Handler) handleRequestApproval(w http.ResponseWriter, r *http.Request) {
	var req requestApprovalRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.RequestApproval(r.Context(), req.Schema, req.Mode, req.RequestedBy, req.Approvers)
	if err != nil {
		h.logger.Error("requesting schema approval", "error", err, "schema_id", req.Schema.SchemaID)
		respondApprovalError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, result)
}

type decisionRequest struct {
	Actor  string `json:"actor" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req decisionRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	schema, err := h.service.ApproveSchema(r.Context(), id, req.Actor)
	if err != nil {
		respondApprovalError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, schema)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req decisionRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	schema, err := h.service.RejectSchema(r.Context(), id, req.Actor, req.Reason)
	if err != nil {
		respondApprovalError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, schema)
}

func (h *Handler) handleDeprecate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req decisionRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	schema, err := h.service.DeprecateSchema(r.Context(), id, req.Actor)
	if err != nil {
		respondApprovalError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, schema)
}

func respondApprovalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		httpserver.RespondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, registry.ErrConflict):
		httpserver.RespondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, registry.ErrInvalidArgument), errors.Is(err, registry.ErrIllegalState):
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "invalid_argument", err.Error())
	default:
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
