package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	id "datex/pkg/domain"
	audit "datex/pkg/platform/audit"
	txcontext "datex/pkg/platform/tx"
)

// Store persists audit events in the audit_outbox table. The table is insert
// only; retention is enforced by a scheduled purge of rows older than 90 days,
// mirroring the TTL index of the original document store. Every round trip
// is bounded by the configured store timeout.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// New creates a PostgreSQL-backed audit store.
func New(db *sql.DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// payload is the JSON structure stored alongside the indexed columns and
// forwarded verbatim to Kafka. Field names match audit.Event.
type payload struct {
	ID                    string   `json:"ID"`
	Category              string   `json:"Category"`
	Timestamp             string   `json:"Timestamp"`
	Subject               string   `json:"Subject,omitempty"`
	Action                string   `json:"Action"`
	Purpose               string   `json:"Purpose,omitempty"`
	ConsentID             string   `json:"ConsentID,omitempty"`
	RequestingParticipant string   `json:"RequestingParticipant,omitempty"`
	CategoriesReleased    []string `json:"CategoriesReleased,omitempty"`
	Decision              string   `json:"Decision,omitempty"`
	Reason                string   `json:"Reason,omitempty"`
	RequestID             string   `json:"RequestID,omitempty"`
	ClientIP              string   `json:"ClientIP,omitempty"`
	UserAgent             string   `json:"UserAgent,omitempty"`
	ActorID               string   `json:"ActorID,omitempty"`
}

// Append writes one audit event. Joins an in-flight transaction from context
// so a consent write and its audit entry commit atomically.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	ctx, cancel := txcontext.Bound(ctx, s.timeout)
	defer cancel()

	entryID := event.ID
	if entryID.IsNil() {
		entryID = id.NewAuditEntryID()
	}
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	p := payload{
		ID:                    entryID.String(),
		Category:              string(category),
		Timestamp:             event.Timestamp.Format(time.RFC3339Nano),
		Subject:               event.Subject,
		Action:                event.Action,
		Purpose:               event.Purpose,
		ConsentID:             event.ConsentID,
		RequestingParticipant: event.RequestingParticipant,
		CategoriesReleased:    event.CategoriesReleased,
		Decision:              event.Decision,
		Reason:                event.Reason,
		RequestID:             event.RequestID,
		ClientIP:              event.ClientIP,
		UserAgent:             event.UserAgent,
		ActorID:               event.ActorID,
	}
	payloadBytes, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, category, subject, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query,
		entryID.String(), string(category), event.Subject, event.Action,
		payloadBytes, event.Timestamp,
	); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListBySubject returns the audit trail for one subject fingerprint, oldest
// first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	ctx, cancel := txcontext.Bound(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT payload FROM audit_outbox
		WHERE subject = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event, err := fromPayload(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func fromPayload(raw []byte) (audit.Event, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return audit.Event{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return audit.Event{}, fmt.Errorf("parse audit timestamp: %w", err)
	}
	event := audit.Event{
		Category:              audit.EventCategory(p.Category),
		Timestamp:             ts,
		Subject:               p.Subject,
		Action:                p.Action,
		Purpose:               p.Purpose,
		ConsentID:             p.ConsentID,
		RequestingParticipant: p.RequestingParticipant,
		CategoriesReleased:    p.CategoriesReleased,
		Decision:              p.Decision,
		Reason:                p.Reason,
		RequestID:             p.RequestID,
		ClientIP:              p.ClientIP,
		UserAgent:             p.UserAgent,
		ActorID:               p.ActorID,
	}
	return event, nil
}
