package dlq

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coreshift/switchyard/internal/httpserver"
)

// Handler exposes dead-letter replay over HTTP: an operator reviewing a
// dead-letter topic's contents (via the broker messaging handler's
// GetMessagesByTopic against "<topic>.dlq") can replay a specific message
// back onto its original topic.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a DLQ Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi.Router with the replay route mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/replay", h.handleReplay)
	return r
}

func (h *Handler) handleReplay(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid message id")
		return
	}

	replayed, err := h.service.ReplayFromDLQ(r.Context(), id)
	if err != nil {
		h.logger.Error("replaying dead-lettered message", "error", err, "message_id", id)
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "invalid_argument", err.Error())
		return
	}
	if !replayed {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "message not found in dead-letter queue")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "replayed"})
}
