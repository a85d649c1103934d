package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/triagehq/triage/internal/db"
)

// Store persists audit trails. The event list is stored as indented JSON so
// persisted trails stay human-diffable; they are the primary compliance
// artifact.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Persist writes the full trail. Re-persisting the same trail replaces the
// stored event list with the longer one, so partial persists before a crash
// lose only the unpersisted tail.
func (s *Store) Persist(ctx context.Context, trail *Trail) error {
	events, err := json.MarshalIndent(trail.Events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling audit events: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_trails (id, ticket_id, created_at, events)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET events = excluded.events`,
		trail.ID,
		trail.TicketID,
		trail.CreatedAt.UTC().Format(time.RFC3339),
		string(events),
	)
	if err != nil {
		return fmt.Errorf("inserting audit trail: %w", err)
	}
	return nil
}

// GetByTicket returns the most recent trail recorded for a ticket.
func (s *Store) GetByTicket(ctx context.Context, ticketID string) (*Trail, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticket_id, created_at, events
		FROM audit_trails WHERE ticket_id = ?
		ORDER BY created_at DESC LIMIT 1`, ticketID)

	t, err := scanTrail(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no audit trail for ticket %q", ticketID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting audit trail: %w", err)
	}
	return t, nil
}

// QueryFilter controls which trails are returned by Query.
type QueryFilter struct {
	TicketID string
	Since    *time.Time
	Until    *time.Time
	Limit    int
}

// Query returns trails matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]*Trail, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.TicketID != "" {
		clauses = append(clauses, "ticket_id = ?")
		args = append(args, filter.TicketID)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}
	if filter.Until != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, filter.Until.UTC().Format(time.RFC3339))
	}

	query := "SELECT id, ticket_id, created_at, events FROM audit_trails"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit trails: %w", err)
	}
	defer rows.Close()

	var trails []*Trail
	for rows.Next() {
		t, err := scanTrail(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit trail: %w", err)
		}
		trails = append(trails, t)
	}
	return trails, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrail(sc scanner) (*Trail, error) {
	var (
		t          Trail
		createdAt  string
		eventsJSON string
	)

	if err := sc.Scan(&t.ID, &t.TicketID, &createdAt, &eventsJSON); err != nil {
		return nil, err
	}

	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		t.CreatedAt = ts
	}
	if err := json.Unmarshal([]byte(eventsJSON), &t.Events); err != nil {
		return nil, fmt.Errorf("unmarshalling audit events: %w", err)
	}
	return &t, nil
}
