package ticket

import "time"

// Platform identifies where a ticket originated.
type Platform string

const (
	PlatformEmail Platform = "email"
	PlatformChat  Platform = "chat"
	PlatformWeb   Platform = "web"
	PlatformAPI   Platform = "api"
)

// Urgency levels recognized in ticket metadata.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Ticket is one inbound support request. It is immutable once created and is
// the only source of truth for the user's intent.
type Ticket struct {
	ID          string            `json:"ticket_id"`
	Platform    Platform          `json:"platform"`
	UserID      string            `json:"user_id"`
	Text        string            `json:"text"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Attachments []string          `json:"attachments,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Urgency returns the metadata urgency, defaulting to medium.
func (t *Ticket) Urgency() string {
	if u, ok := t.Metadata["urgency"]; ok && u != "" {
		return u
	}
	return UrgencyMedium
}

// ThreadID returns the conversation thread id from metadata, if any.
func (t *Ticket) ThreadID() string {
	return t.Metadata["thread_id"]
}

// Language returns the metadata language hint, if any.
func (t *Ticket) Language() string {
	return t.Metadata["language"]
}
