package pipeline

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coreshift/switchyard/internal/httpserver"
	"github.com/coreshift/switchyard/pkg/module"
)

// Handler exposes the deployment pipeline over HTTP: start a deployment,
// inspect its state, approve or reject a gated deployment, and trigger a
// manual rollback.
type Handler struct {
	orchestrator *Orchestrator
	gate         *ApprovalGate
	logger       *slog.Logger
}

// NewHandler creates a pipeline Handler.
func NewHandler(orchestrator *Orchestrator, gate *ApprovalGate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{orchestrator: orchestrator, gate: gate, logger: logger}
}

// Routes returns a chi.Router with all deployment routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreateDeployment)
	r.Get("/", h.handleList)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/approve", h.handleApprove)
		r.Post("/reject", h.handleReject)
		r.Post("/rollback", h.handleRollback)
	})
	return r
}

// createDeploymentRequest is the body of POST /api/v1/deployments.
type createDeploymentRequest struct {
	Module      module.Module `json:"module" validate:"required"`
	Environment string        `json:"environment" validate:"required"`
	Strategy    string        `json:"strategy" validate:"required"`
}

func (h *Handler) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req createDeploymentRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	exec, err := h.orchestrator.CreateDeployment(r.Context(), req.Module, req.Environment, req.Strategy)
	if err != nil {
		h.logger.Error("creating deployment", "error", err, "environment", req.Environment, "strategy", req.Strategy)
		httpserver.RespondErr(w, err)
		return
	}

	// CreateDeployment records validation/gate/rollback failures as a
	// failed Execution rather than a Go error, so the resource is still
	// created and returned with its failing stage visible in Stages.
	httpserver.Respond(w, http.StatusCreated, exec)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	environment := r.URL.Query().Get("environment")

	var executions []Execution
	if environment != "" {
		executions = h.orchestrator.tracker.ListByEnvironment(environment)
	} else {
		executions = h.orchestrator.tracker.List()
	}

	httpserver.Respond(w, http.StatusOK, executions)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid execution id")
		return
	}

	exec, ok := h.orchestrator.tracker.GetResult(id)
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "deployment execution not found")
		return
	}

	httpserver.Respond(w, http.StatusOK, exec)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid execution id")
		return
	}

	if !h.gate.Approve(id) {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "no deployment is waiting for approval with this id")
		return
	}

	httpserver.Respond(w, http.StatusAccepted, map[string]string{"status": "approved"})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid execution id")
		return
	}

	if !h.gate.Reject(id) {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "no deployment is waiting for approval with this id")
		return
	}

	httpserver.Respond(w, http.StatusAccepted, map[string]string{"status": "rejected"})
}

func (h *Handler) handleRollback(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid execution id")
		return
	}

	exec, err := h.orchestrator.RollbackDeployment(r.Context(), id)
	if err != nil {
		h.logger.Error("rolling back deployment", "error", err, "execution_id", id)
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "invalid_argument", err.Error())
		return
	}

	httpserver.Respond(w, http.StatusOK, exec)
}
