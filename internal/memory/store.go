package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/triagehq/triage/internal/db"
	"github.com/triagehq/triage/internal/embeddings"
)

// timeLayout is a fixed-width timestamp format so lexicographic ordering in
// SQLite matches chronological ordering at sub-second resolution.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the memory subsystem: a short-term per-session append log, a
// ticket message history layered on the same log, and a long-term
// similarity-searchable archive. It is safe for concurrent use across
// sessions; each write is a single independent row.
type Store struct {
	db       *db.DB
	embedder embeddings.Embedder
}

// NewStore creates a memory store backed by the given database. The embedder
// is used to embed queries and new long-term entries.
func NewStore(database *db.DB, embedder embeddings.Embedder) *Store {
	return &Store{db: database, embedder: embedder}
}

// PutShort appends a processing snapshot to the session's short-term log.
func (s *Store) PutShort(ctx context.Context, sessionID, ticketID string, payload map[string]any) (*ShortTermEntry, error) {
	entry := ShortTermEntry{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		TicketID:  ticketID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling short-term payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO short_term_memory (id, session_id, ticket_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.SessionID, entry.TicketID, string(data), entry.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting short-term entry: %w", err)
	}
	return &entry, nil
}

// GetShort returns the session's short-term history, newest first.
func (s *Store) GetShort(ctx context.Context, sessionID string) ([]ShortTermEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, ticket_id, payload, created_at
		FROM short_term_memory WHERE session_id = ?
		ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying short-term memory: %w", err)
	}
	defer rows.Close()

	var entries []ShortTermEntry
	for rows.Next() {
		var (
			e           ShortTermEntry
			payloadJSON string
			createdAt   string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TicketID, &payloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning short-term entry: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshalling short-term payload: %w", err)
		}
		e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PutMessage appends one conversational message to the session history.
func (s *Store) PutMessage(ctx context.Context, sessionID, ticketID, role, text string, metadata map[string]string) (*Message, error) {
	msg := Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		TicketID:  ticketID,
		Role:      role,
		Text:      text,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshalling message metadata: %w", err)
	}
	if metadata == nil {
		meta = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ticket_messages (id, session_id, ticket_id, role, text, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.TicketID, msg.Role, msg.Text, string(meta), msg.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting ticket message: %w", err)
	}
	return &msg, nil
}

// GetMessages returns message history oldest first, capped at filter.Limit.
// When no rows match the session/ticket and a user id is supplied, the
// user's long-term entries are returned as synthetic history with role "ltm".
func (s *Store) GetMessages(ctx context.Context, filter MessageFilter) ([]Message, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, filter.SessionID)
	} else if filter.TicketID != "" {
		clauses = append(clauses, "ticket_id = ?")
		args = append(args, filter.TicketID)
	}

	query := "SELECT id, session_id, ticket_id, role, text, metadata, created_at FROM ticket_messages"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ticket messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m         Message
			metaJSON  string
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.TicketID, &m.Role, &m.Text, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning ticket message: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			m.Metadata = nil
		}
		m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(msgs) == 0 && filter.UserID != "" {
		return s.longTermAsMessages(ctx, filter.UserID, filter.Limit)
	}
	return msgs, nil
}

// longTermAsMessages materializes a user's long-term entries as history rows.
func (s *Store) longTermAsMessages(ctx context.Context, userID string, limit int) ([]Message, error) {
	query := `
		SELECT id, ticket_id, text, created_at
		FROM long_term_memory
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying long-term fallback history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m         Message
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.TicketID, &m.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning long-term fallback row: %w", err)
		}
		m.Role = RoleLTM
		m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// PutLong inserts a new long-term entry. Entries are never updated in place;
// a correction is a new entry. When embedding is nil the store embeds the
// text itself.
func (s *Store) PutLong(ctx context.Context, userID, ticketID, text string, embedding []float32, metadata map[string]string) (*LongTermEntry, error) {
	if embedding == nil && s.embedder != nil {
		var err error
		embedding, err = embeddings.EmbedOne(ctx, s.embedder, text)
		if err != nil {
			return nil, fmt.Errorf("embedding long-term entry: %w", err)
		}
	}

	entry := LongTermEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		TicketID:  ticketID,
		Text:      text,
		Embedding: embedding,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	var embJSON sql.NullString
	if embedding != nil {
		data, err := json.Marshal(embedding)
		if err != nil {
			return nil, fmt.Errorf("marshalling embedding: %w", err)
		}
		embJSON = sql.NullString{String: string(data), Valid: true}
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshalling long-term metadata: %w", err)
	}
	if metadata == nil {
		meta = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO long_term_memory (id, user_id, ticket_id, text, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.TicketID, entry.Text, embJSON, string(meta), entry.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting long-term entry: %w", err)
	}
	return &entry, nil
}

// SoftDelete marks a long-term entry deleted. The row is retained for audit
// history but excluded from search; hard deletion is not exposed.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE long_term_memory SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting long-term entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("long-term entry %q not found", id)
	}
	return nil
}

// SemanticSearch embeds the query and cosine-ranks it against every
// non-deleted stored embedding, returning the top-k hits. This is a
// brute-force linear scan; a larger deployment swaps in an indexed
// nearest-neighbor store behind the same method without changing callers.
func (s *Store) SemanticSearch(ctx context.Context, queryText string, topK int) ([]SearchHit, error) {
	if topK <= 0 {
		topK = 5
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("semantic search requires an embedder")
	}

	queryVec, err := embeddings.EmbedOne(ctx, s.embedder, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, ticket_id, text, embedding, metadata, created_at
		FROM long_term_memory
		WHERE deleted_at IS NULL AND embedding IS NOT NULL
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("scanning long-term memory: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var (
			e         LongTermEntry
			embJSON   string
			metaJSON  string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.TicketID, &e.Text, &embJSON, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning long-term entry: %w", err)
		}
		if err := json.Unmarshal([]byte(embJSON), &e.Embedding); err != nil || len(e.Embedding) == 0 {
			continue
		}
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			e.Metadata = nil
		}
		e.CreatedAt, _ = time.Parse(timeLayout, createdAt)

		hits = append(hits, SearchHit{Entry: e, Score: cosine(queryVec, e.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Stable sort plus the insertion-ordered scan keeps repeated searches
	// deterministic even when scores tie.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// cosine computes cosine similarity with a small epsilon so a zero vector
// never divides by zero.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA)*math.Sqrt(normB) + 1e-8
	return dot / denom
}
