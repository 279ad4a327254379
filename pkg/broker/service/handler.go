package service

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coreshift/switchyard/internal/httpserver"
	"github.com/coreshift/switchyard/pkg/broker/message"
)

// Handler exposes the broker's messaging and topic/subscription CRUD
// surface over HTTP.
type Handler struct {
	broker *Broker
	logger *slog.Logger
}

// NewHandler creates a broker Handler.
func NewHandler(broker *Broker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{broker: broker, logger: logger}
}

// Routes returns a chi.Router with all broker routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/messages", func(r chi.Router) {
		r.Post("/", h.handlePublish)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetMessage)
			r.Delete("/", h.handleDeleteMessage)
			r.Post("/ack", h.handleAcknowledge)
		})
	})

	r.Route("/topics", func(r chi.Router) {
		r.Post("/", h.handleCreateTopic)
		r.Get("/", h.handleListTopics)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.handleGetTopic)
			r.Delete("/", h.handleDeleteTopic)
			r.Get("/messages", h.handleGetMessagesByTopic)
		})
	})

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", h.handleCreateSubscription)
		r.Get("/", h.handleListSubscriptions)
		r.Delete("/{id}", h.handleDeleteSubscription)
	})

	return r
}

type publishRequest struct {
	TopicName     string            `json:"topic_name" validate:"required"`
	Payload       []byte            `json:"payload"`
	Priority      int               `json:"priority" validate:"min=0,max=9"`
	SchemaVersion string            `json:"schema_version,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	msg, route, err := h.broker.PublishMessage(r.Context(), message.Message{
		TopicName:     req.TopicName,
		Payload:       req.Payload,
		Priority:      req.Priority,
		SchemaVersion: req.SchemaVersion,
		Headers:       req.Headers,
	})
	if err != nil {
		h.logger.Error("publishing message", "error", err, "topic", req.TopicName)
		httpserver.RespondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}

	httpserver.Respond(w, http.StatusCreated, map[string]any{
		"message": msg,
		"route":   route,
	})
}

func (h *Handler) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid message id")
		return
	}

	msg, ok, err := h.broker.GetMessage(r.Context(), id)
	if err != nil {
		h.logger.Error("getting message", "error", err, "message_id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get message")
		return
	}
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "message not found")
		return
	}

	httpserver.Respond(w, http.StatusOK, msg)
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid message id")
		return
	}

	if err := h.broker.DeleteMessage(r.Context(), id); err != nil {
		h.logger.Error("deleting message", "error", err, "message_id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete message")
		return
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid message id")
		return
	}

	if err := h.broker.AcknowledgeMessage(r.Context(), id); err != nil {
		h.logger.Error("acknowledging message", "error", err, "message_id", id)
		httpserver.RespondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

func (h *Handler) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var topic message.Topic
	if !httpserver.DecodeAndValidate(w, r, &topic) {
		return
	}

	if err := h.broker.CreateTopic(r.Context(), topic); err != nil {
		httpserver.RespondError(w, http.StatusConflict, "conflict", err.Error())
		return
	}

	httpserver.Respond(w, http.StatusCreated, topic)
}

func (h *Handler) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	topic, ok := h.broker.GetTopic(r.Context(), name)
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "topic not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, topic)
}

func (h *Handler) handleListTopics(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, h.broker.ListTopics(r.Context()))
}

func (h *Handler) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.broker.DeleteTopic(r.Context(), name); err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleGetMessagesByTopic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	limit := maxGetByTopicLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	messages, err := h.broker.GetMessagesByTopic(r.Context(), name, limit)
	if err != nil {
		h.logger.Error("listing messages by topic", "error", err, "topic", name)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list messages")
		return
	}

	httpserver.Respond(w, http.StatusOK, messages)
}

func (h *Handler) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var sub message.Subscription
	if !httpserver.DecodeAndValidate(w, r, &sub) {
		return
	}

	created, err := h.broker.CreateSubscription(r.Context(), sub)
	if err != nil {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "invalid_argument", err.Error())
		return
	}

	httpserver.Respond(w, http.StatusCreated, created)
}

func (h *Handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, h.broker.ListSubscriptions(r.Context()))
}

func (h *Handler) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid subscription id")
		return
	}

	if err := h.broker.DeleteSubscription(r.Context(), id); err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}
