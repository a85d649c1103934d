package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func setupRouter(t *testing.T) (chi.Router, *Store) {
	t.Helper()

	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)
	return r, store
}

func TestGetTrailEndpoint(t *testing.T) {
	r, store := setupRouter(t)

	trail := NewTrail("t1")
	trail.Append(StepIngest, map[string]any{"ticket_id": "t1"})
	if err := store.Persist(context.Background(), trail); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/audit/t1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var got Trail
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TicketID != "t1" {
		t.Errorf("ticket id: got %q, want t1", got.TicketID)
	}
	if len(got.Events) != 1 {
		t.Errorf("expected 1 event, got %d", len(got.Events))
	}
}

func TestGetTrailEndpointNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest("GET", "/api/audit/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	r, store := setupRouter(t)

	for _, ticketID := range []string{"a", "b"} {
		trail := NewTrail(ticketID)
		trail.Append(StepIngest, nil)
		if err := store.Persist(context.Background(), trail); err != nil {
			t.Fatalf("Persist: %v", err)
		}
	}

	req := httptest.NewRequest("GET", "/api/audit/?ticket=a", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var trails []*Trail
	if err := json.Unmarshal(w.Body.Bytes(), &trails); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(trails) != 1 || trails[0].TicketID != "a" {
		t.Errorf("expected one trail for ticket a, got %v", trails)
	}
}
