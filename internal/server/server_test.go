package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/triagehq/triage/internal/audit"
	"github.com/triagehq/triage/internal/capability"
	"github.com/triagehq/triage/internal/db"
	"github.com/triagehq/triage/internal/embeddings"
	"github.com/triagehq/triage/internal/engine"
	"github.com/triagehq/triage/internal/memory"
	"github.com/triagehq/triage/internal/tools"
)

func setupServer(t *testing.T) *Server {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	registry := tools.NewRegistry()
	registry.Register(tools.NewRefund(1000, true))

	auditStore := audit.NewStore(database)
	eng, err := engine.New(engine.Deps{
		Memory:     memory.NewStore(database, embeddings.NewHashEmbedder()),
		AuditStore: auditStore,
		Classifier: capability.NewRuleClassifier(),
		Resolver:   capability.NewRuleResolver(),
		Tools:      registry,
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	return New(Config{Port: 0, AllowedOrigins: []string{"*"}}, eng, auditStore)
}

func TestHealthCheck(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestSubmitTicket(t *testing.T) {
	srv := setupServer(t)

	body := `{"ticket_id":"t-1","user_id":"user_abc","text":"I want a refund for order 12345."}`
	req := httptest.NewRequest("POST", "/api/tickets", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result engine.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.TicketID != "t-1" {
		t.Errorf("ticket id: got %q", result.TicketID)
	}
	if result.Decision == nil || !result.Decision.AutoResolve {
		t.Errorf("expected auto-resolution, got %+v", result.Decision)
	}
	if result.Trail == nil || len(result.Trail.Events) == 0 {
		t.Error("expected audit trail in response")
	}
}

func TestSubmitTicketValidation(t *testing.T) {
	srv := setupServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing ticket id", `{"text":"hello"}`},
		{"missing text", `{"ticket_id":"t-1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/tickets", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestAuditEndpointAfterSubmission(t *testing.T) {
	srv := setupServer(t)

	body := `{"ticket_id":"t-2","user_id":"user_abc","text":"refund for order 55."}`
	req := httptest.NewRequest("POST", "/api/tickets", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/audit/t-2", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var trail audit.Trail
	if err := json.Unmarshal(w.Body.Bytes(), &trail); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if trail.TicketID != "t-2" {
		t.Errorf("ticket id: got %q", trail.TicketID)
	}
}

func TestEscalationEndpoint(t *testing.T) {
	srv := setupServer(t)

	// High urgency plus a destructive action forces an escalation.
	body := `{"ticket_id":"t-3","user_id":"user_abc","text":"refund order 99 now",` +
		`"metadata":{"urgency":"high"}}`
	req := httptest.NewRequest("POST", "/api/tickets", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/escalations/t-3", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected HTML, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "t-3") {
		t.Error("rendered summary should name the ticket")
	}
}

func TestEscalationEndpointNotEscalated(t *testing.T) {
	srv := setupServer(t)

	// Auto-resolved ticket has no escalation summary.
	body := `{"ticket_id":"t-4","user_id":"user_abc","text":"refund order 77"}`
	req := httptest.NewRequest("POST", "/api/tickets", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/escalations/t-4", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for non-escalated ticket, got %d", w.Code)
	}
}

func TestChatWebSocketRoundTrip(t *testing.T) {
	srv := setupServer(t)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	req := chatRequest{Type: "message", UserID: "user_abc", Content: "refund for order 321"}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write: %v", err)
	}

	var resp chatResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != "response" {
		t.Fatalf("expected response frame, got %+v", resp)
	}
	if resp.SessionID == "" {
		t.Error("server should mint a session id")
	}
	if resp.Content == "" {
		t.Error("expected a reply for the customer")
	}
	if resp.Disposition == "" {
		t.Error("expected a disposition")
	}

	// A second message on the returned session keeps the conversation.
	req.SessionID = resp.SessionID
	req.Content = "any update on that refund?"
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("second write: %v", err)
	}
	var second chatResponse
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if second.SessionID != resp.SessionID {
		t.Errorf("session changed: %q -> %q", resp.SessionID, second.SessionID)
	}
}

func TestChatWebSocketRejectsEmptyContent(t *testing.T) {
	srv := setupServer(t)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.WriteJSON(chatRequest{Type: "message"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp chatResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != "error" {
		t.Errorf("expected error frame, got %+v", resp)
	}
}

func TestEscalationEndpointUnknownTicket(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest("GET", "/api/escalations/ghost", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
