package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestHandler_GetAndDelete(t *testing.T) {
	reg := New(nil)
	_ = reg.Register(context.Background(), MessageSchema{
		SchemaID:         "orders-v1",
		FamilyID:         "orders",
		SchemaDefinition: `{"type":"object"}`,
	})

	h := NewHandler(reg, nil)
	router := chi.NewRouter()
	router.Mount("/schemas", h.Routes())

	r := httptest.NewRequest(http.MethodGet, "/schemas/orders-v1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200: %s", w.Code, w.Body.String())
	}

	r = httptest.NewRequest(http.MethodDelete, "/schemas/orders-v1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204: %s", w.Code, w.Body.String())
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	h := NewHandler(New(nil), nil)
	router := chi.NewRouter()
	router.Mount("/schemas", h.Routes())

	r := httptest.NewRequest(http.MethodGet, "/schemas/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandler_DeleteNonDraftIsUnprocessable(t *testing.T) {
	reg := New(nil)
	ctx := context.Background()
	_ = reg.Register(ctx, MessageSchema{SchemaID: "orders-v1", FamilyID: "orders", SchemaDefinition: `{"type":"object"}`})
	_ = reg.UpdateStatus(ctx, "orders-v1", Approved, "alice")

	h := NewHandler(reg, nil)
	router := chi.NewRouter()
	router.Mount("/schemas", h.Routes())

	r := httptest.NewRequest(http.MethodDelete, "/schemas/orders-v1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422: %s", w.Code, w.Body.String())
	}
}
