package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"warikan/internal/domain"
)

// PostgresStore writes the outbox through database/sql. The outbox lives in
// the same database as the ledger so a future transactional append can share
// the mutation's transaction.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens and pings an outbox connection.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open outbox db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping outbox db: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an existing handle; used by integration tests.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// EnsureSchema creates the outbox table when absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS audit_outbox (
	id           TEXT PRIMARY KEY,
	action       TEXT NOT NULL,
	actor        TEXT NOT NULL,
	subject      TEXT NOT NULL,
	occurred_at  TIMESTAMPTZ NOT NULL,
	request_id   TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_audit_outbox_pending ON audit_outbox(occurred_at) WHERE published_at IS NULL;`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO audit_outbox (id, action, actor, subject, occurred_at, request_id)
VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, string(event.Action), event.Actor.String(), event.Subject, event.Timestamp, event.RequestID)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Pending(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, action, actor, subject, occurred_at, request_id
FROM audit_outbox
WHERE published_at IS NULL
ORDER BY occurred_at
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var action, actor string
		if err := rows.Scan(&e.ID, &action, &actor, &e.Subject, &e.Timestamp, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = Action(action)
		e.Actor = domain.UserID(actor)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = NOW() WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}
