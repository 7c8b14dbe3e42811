package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"

	audit "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
	txcontext "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/tx"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	category    TEXT        NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	subject     TEXT        NOT NULL,
	action      TEXT        NOT NULL,
	resource    TEXT        NOT NULL DEFAULT '',
	decision    TEXT        NOT NULL DEFAULT '',
	reason      TEXT        NOT NULL DEFAULT '',
	request_id  TEXT        NOT NULL DEFAULT '',
	actor_id    TEXT        NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_subject_idx ON audit_events (subject, timestamp);
`

// Store implements audit.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the audit table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
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

const insertEvent = `
	INSERT INTO audit_events (
		id, category, timestamp, subject, action,
		resource, decision, reason, request_id, actor_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	_, err := s.execer(ctx).ExecContext(ctx, insertEvent,
		uuid.New(),
		string(category),
		event.Timestamp,
		event.Subject,
		event.Action,
		event.Resource,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// AppendBatch writes events in a single transaction.
func (s *Store) AppendBatch(ctx context.Context, events []audit.Event) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		for i, event := range events {
			if err := s.Append(ctx, event); err != nil {
				return fmt.Errorf("event %d of %d: %w", i+1, len(events), err)
			}
		}
		return nil
	})
}

const selectColumns = `
	SELECT category, timestamp, subject, action,
		   resource, decision, reason, request_id, actor_id
	FROM audit_events
`

// ListBySubject returns a subject's events, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE subject = $1 ORDER BY timestamp ASC`, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			category string
			event    audit.Event
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&event.Subject,
			&event.Action,
			&event.Resource,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
			&event.ActorID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
