package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/triagehq/triage/internal/ticket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format. Each message is
// processed as one ticket on a shared session so the conversation history
// accumulates.
type chatRequest struct {
	Type      string `json:"type"`       // "message"
	SessionID string `json:"session_id"` // empty for new sessions
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type        string `json:"type"` // "response" or "error"
	SessionID   string `json:"session_id"`
	TicketID    string `json:"ticket_id,omitempty"`
	Content     string `json:"content"`
	Disposition string `json:"disposition,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendChatError(conn, "", "invalid message format")
			continue
		}

		if req.Content == "" {
			s.sendChatError(conn, req.SessionID, "content is required")
			continue
		}

		switch req.Type {
		case "message":
			s.handleChatMessage(conn, r, req)
		default:
			s.sendChatError(conn, req.SessionID, "unknown message type: "+req.Type)
		}
	}
}

func (s *Server) handleChatMessage(conn *websocket.Conn, r *http.Request, req chatRequest) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "chat_" + uuid.New().String()
	}

	t := &ticket.Ticket{
		ID:        fmt.Sprintf("chat-%s", uuid.New().String()),
		Platform:  ticket.PlatformChat,
		UserID:    req.UserID,
		Text:      req.Content,
		Metadata:  map[string]string{"thread_id": sessionID},
		CreatedAt: time.Now().UTC(),
	}

	result, err := s.engine.Run(r.Context(), t, sessionID)
	if err != nil {
		s.sendChatError(conn, sessionID, "processing failed: "+err.Error())
		return
	}

	resp := chatResponse{
		Type:      "response",
		SessionID: sessionID,
		TicketID:  t.ID,
		Content:   result.Response(),
	}
	if result.Decision != nil {
		resp.Disposition = string(result.Decision.Disposition())
	}
	s.sendChatResponse(conn, resp)
}

func (s *Server) sendChatResponse(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}

func (s *Server) sendChatError(conn *websocket.Conn, sessionID, message string) {
	resp := chatResponse{
		Type:      "error",
		SessionID: sessionID,
		Content:   message,
	}
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write error: %v", err)
	}
}
