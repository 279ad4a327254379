package registry

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coreshift/switchyard/internal/httpserver"
)

// Handler exposes read-only access to the schema registry over HTTP.
// Mutating transitions (approve/reject/deprecate) belong to
// pkg/schema/approval.Handler, which is the only caller allowed to change a
// schema's Status.
type Handler struct {
	registry *Registry
	logger   *slog.Logger
}

// NewHandler creates a registry Handler.
func NewHandler(registry *Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{registry: registry, logger: logger}
}

// Routes returns a chi.Router with all read-only registry routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.handleGet)
	r.Delete("/{id}", h.handleDelete)
	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	schema, ok := h.registry.Get(r.Context(), id)
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "schema not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, schema)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registry.Delete(r.Context(), id); err != nil {
		respondRegistryError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}

// respondRegistryError maps the registry's sentinel errors onto HTTP status
// codes: not-found->404, conflict->409,
// invalid-argument/illegal-state->422.
func respondRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpserver.RespondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrConflict):
		httpserver.RespondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrIllegalState):
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "invalid_argument", err.Error())
	default:
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
