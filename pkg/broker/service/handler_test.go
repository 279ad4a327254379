package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

func newTestBrokerHandler(t *testing.T) *Handler {
	t.Helper()
	return NewHandler(newBroker(t), nil)
}

func mountBroker(h *Handler) *chi.Mux {
	router := chi.NewRouter()
	router.Mount("/broker", h.Routes())
	return router
}

func TestHandler_CreateTopicAndPublish(t *testing.T) {
	h := newTestBrokerHandler(t)
	router := mountBroker(h)

	topicBody, _ := json.Marshal(message.Topic{Name: "orders", Type: message.TopicQueue, PartitionCount: 1})
	r := httptest.NewRequest(http.MethodPost, "/broker/topics", bytes.NewReader(topicBody))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("create topic status = %d, want 201: %s", w.Code, w.Body.String())
	}

	subBody, _ := json.Marshal(message.Subscription{TopicName: "orders", IsActive: true, ConsumerEndpoint: "worker-1"})
	r = httptest.NewRequest(http.MethodPost, "/broker/subscriptions", bytes.NewReader(subBody))
	r.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("create subscription status = %d, want 201: %s", w.Code, w.Body.String())
	}

	pubBody, _ := json.Marshal(publishRequest{TopicName: "orders", Payload: []byte("hi")})
	r = httptest.NewRequest(http.MethodPost, "/broker/messages", bytes.NewReader(pubBody))
	r.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("publish status = %d, want 201: %s", w.Code, w.Body.String())
	}
}

func TestHandler_PublishUnknownTopicIsNotFound(t *testing.T) {
	h := newTestBrokerHandler(t)
	router := mountBroker(h)

	body, _ := json.Marshal(publishRequest{TopicName: "does-not-exist"})
	r := httptest.NewRequest(http.MethodPost, "/broker/messages", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

func TestHandler_PublishInvalidBody(t *testing.T) {
	h := newTestBrokerHandler(t)
	router := mountBroker(h)

	r := httptest.NewRequest(http.MethodPost, "/broker/messages", strings.NewReader(`{bad}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandler_GetMessageNotFound(t *testing.T) {
	h := newTestBrokerHandler(t)
	router := mountBroker(h)

	r := httptest.NewRequest(http.MethodGet, "/broker/messages/00000000-0000-0000-0000-000000000000", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandler_TopicLifecycle(t *testing.T) {
	h := newTestBrokerHandler(t)
	router := mountBroker(h)

	topicBody, _ := json.Marshal(message.Topic{Name: "billing", Type: message.TopicPubSub, PartitionCount: 1})
	r := httptest.NewRequest(http.MethodPost, "/broker/topics", bytes.NewReader(topicBody))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", w.Code, w.Body.String())
	}

	r = httptest.NewRequest(http.MethodGet, "/broker/topics/billing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200: %s", w.Code, w.Body.String())
	}

	r = httptest.NewRequest(http.MethodGet, "/broker/topics", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	var topics []message.Topic
	if err := json.Unmarshal(w.Body.Bytes(), &topics); err != nil || len(topics) != 1 {
		t.Fatalf("list topics = %v, %v, want 1 topic", topics, err)
	}

	r = httptest.NewRequest(http.MethodDelete, "/broker/topics/billing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
}
