package memory

import "time"

// Message roles stored in ticket message history.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
	// RoleLTM marks synthetic history rows materialized from long-term
	// memory when a session has no recorded messages yet.
	RoleLTM = "ltm"
)

// ShortTermEntry is one processing snapshot written during a session.
type ShortTermEntry struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	TicketID  string         `json:"ticket_id,omitempty"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// Message is one conversational message tied to a session and ticket.
type Message struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	TicketID  string            `json:"ticket_id,omitempty"`
	Role      string            `json:"role"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// LongTermEntry is a durable, similarity-searchable memory row. Entries are
// append-only; corrections are new entries and removal is a soft delete.
type LongTermEntry struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	TicketID  string            `json:"ticket_id,omitempty"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	DeletedAt *time.Time        `json:"deleted_at,omitempty"`
}

// SearchHit pairs a long-term entry with its cosine similarity to a query.
type SearchHit struct {
	Entry LongTermEntry `json:"entry"`
	Score float64       `json:"score"`
}

// MessageFilter selects message history. SessionID takes precedence over
// TicketID; UserID enables the long-term-memory fallback when no rows match.
type MessageFilter struct {
	SessionID string
	TicketID  string
	UserID    string
	Limit     int
}
