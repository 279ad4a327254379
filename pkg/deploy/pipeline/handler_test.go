package pipeline

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/coreshift/switchyard/pkg/deploy/strategy"
	"github.com/coreshift/switchyard/pkg/kernelnode"
	"github.com/coreshift/switchyard/pkg/module"
)

func newTestHandler(t *testing.T) (*Handler, *Orchestrator) {
	t.Helper()
	tracker := NewTracker()
	gate := NewApprovalGate()
	orch := New(tracker, gate, nil, nil, Options{})
	orch.RegisterStrategy(&strategy.DirectStrategy{})

	cluster := kernelnode.NewEnvironmentCluster("staging")
	if err := cluster.AddNode(kernelnode.New("node-1", 8080, "staging")); err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}
	orch.RegisterCluster(cluster)

	return NewHandler(orch, gate, nil), orch
}

func TestHandler_CreateDeployment_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "missing module",
			body:       `{"environment":"staging","strategy":"direct"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "invalid json",
			body:       `{bad}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	h, _ := newTestHandler(t)
	router := chi.NewRouter()
	router.Mount("/deployments", h.Routes())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/deployments", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestHandler_CreateDeployment_UnknownEnvironmentRecordsFailedExecution(t *testing.T) {
	h, _ := newTestHandler(t)
	router := chi.NewRouter()
	router.Mount("/deployments", h.Routes())

	body, _ := json.Marshal(createDeploymentRequest{
		Module:      moduleFixture(),
		Environment: "does-not-exist",
		Strategy:    "direct",
	})
	r := httptest.NewRequest(http.MethodPost, "/deployments", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	// CreateDeployment records an unknown environment as a failed
	// Execution, not a transport-level error: the resource still exists
	// and is returned, just with State=failed.
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var created Execution
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if created.State != StateFailed {
		t.Errorf("State = %v, want failed", created.State)
	}
}

func TestHandler_CreateDeployment_SucceedsAndIsRetrievable(t *testing.T) {
	h, _ := newTestHandler(t)
	router := chi.NewRouter()
	router.Mount("/deployments", h.Routes())

	body, _ := json.Marshal(createDeploymentRequest{
		Module:      moduleFixture(),
		Environment: "staging",
		Strategy:    "direct",
	})
	r := httptest.NewRequest(http.MethodPost, "/deployments", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var created Execution
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/deployments/"+created.ExecutionID.String(), nil)
	getW := httptest.NewRecorder()
	router.ServeHTTP(getW, getReq)

	if getW.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200: %s", getW.Code, getW.Body.String())
	}
}

func TestHandler_GetDeployment_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	router := chi.NewRouter()
	router.Mount("/deployments", h.Routes())

	r := httptest.NewRequest(http.MethodGet, "/deployments/00000000-0000-0000-0000-000000000000", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandler_Approve_NoWaiterReturnsNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	router := chi.NewRouter()
	router.Mount("/deployments", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/deployments/00000000-0000-0000-0000-000000000000/approve", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func moduleFixture() module.Module {
	return module.Module{Name: "checkout-service", Version: "1.0.0"}
}
