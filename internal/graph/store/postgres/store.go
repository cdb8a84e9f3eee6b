// Package postgres is the production store for the graph service.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"warikan/internal/domain"
	"warikan/pkg/sentinel"
)

// Store persists the ledger in PostgreSQL via a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects and verifies the pool.
func New(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewFromPool wraps an existing pool; used by integration tests.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables when they do not exist. Payments cascade
// with their group at the schema level; user rows are only removed through
// DeleteUser, so payment references to users are plain strings that may
// dangle under the cascade delete policy.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS groups (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	title      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS group_participants (
	group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	user_id  TEXT NOT NULL,
	PRIMARY KEY (group_id, user_id)
);
CREATE TABLE IF NOT EXISTS payments (
	id          TEXT PRIMARY KEY,
	group_id    TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	created_at  TIMESTAMPTZ NOT NULL,
	title       TEXT NOT NULL,
	creditor_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS payment_debtors (
	payment_id TEXT NOT NULL REFERENCES payments(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	position   INT NOT NULL,
	PRIMARY KEY (payment_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_payments_group ON payments(group_id);
CREATE INDEX IF NOT EXISTS idx_participants_user ON group_participants(user_id);`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		user.ID.String(), user.Name)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name FROM users WHERE id = $1`, id.String()).
		Scan(&user.ID, &user.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

func (s *Store) DeleteUser(ctx context.Context, id domain.UserID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) UserReferences(ctx context.Context, id domain.UserID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
SELECT
	(SELECT COUNT(*) FROM group_participants WHERE user_id = $1) +
	(SELECT COUNT(*) FROM payments WHERE creditor_id = $1) +
	(SELECT COUNT(*) FROM payment_debtors WHERE user_id = $1)`,
		id.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count user references: %w", err)
	}
	return count, nil
}

func (s *Store) CreateGroup(ctx context.Context, group domain.Group) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO groups (id, created_at, title) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		group.ID.String(), group.CreatedAt, group.Title)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %s: %w", group.ID, sentinel.ErrConflict)
	}
	for _, u := range group.Participants {
		if _, err := tx.Exec(ctx,
			`INSERT INTO group_participants (group_id, user_id) VALUES ($1, $2)`,
			group.ID.String(), u.ID.String()); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetGroup(ctx context.Context, id domain.GroupID) (domain.Group, error) {
	var group domain.Group
	err := s.pool.QueryRow(ctx,
		`SELECT id, created_at, title FROM groups WHERE id = $1`, id.String()).
		Scan(&group.ID, &group.CreatedAt, &group.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Group{}, fmt.Errorf("group %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return domain.Group{}, fmt.Errorf("select group: %w", err)
	}

	group.Participants, err = s.participants(ctx, id)
	if err != nil {
		return domain.Group{}, err
	}
	group.Payments, err = s.paymentsByGroup(ctx, id)
	if err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

func (s *Store) GroupsByParticipant(ctx context.Context, id domain.UserID) ([]domain.Group, error) {
	rows, err := s.pool.Query(ctx, `
SELECT g.id, g.created_at, g.title
FROM groups g
JOIN group_participants gp ON gp.group_id = g.id
WHERE gp.user_id = $1`, id.String())
	if err != nil {
		return nil, fmt.Errorf("select groups by participant: %w", err)
	}
	defer rows.Close()

	groups := []domain.Group{}
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.CreatedAt, &g.Title); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Participants, err = s.participants(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Payments, err = s.paymentsByGroup(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id domain.GroupID) error {
	// Payments cascade via the schema.
	tag, err := s.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO payments (id, group_id, created_at, title, creditor_id) VALUES ($1, $2, $3, $4, $5)`,
		payment.ID.String(), payment.GroupID.String(), payment.CreatedAt, payment.Title, payment.Creditor.ID.String())
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	for i, d := range payment.Debtors {
		if _, err := tx.Exec(ctx,
			`INSERT INTO payment_debtors (payment_id, user_id, position) VALUES ($1, $2, $3)`,
			payment.ID.String(), d.ID.String(), i); err != nil {
			return fmt.Errorf("insert debtor: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetPayment(ctx context.Context, id domain.PaymentID) (domain.Payment, error) {
	var p domain.Payment
	var creditorID string
	err := s.pool.QueryRow(ctx,
		`SELECT id, group_id, created_at, title, creditor_id FROM payments WHERE id = $1`,
		id.String()).
		Scan(&p.ID, &p.GroupID, &p.CreatedAt, &p.Title, &creditorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, fmt.Errorf("payment %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}

	p.Creditor, err = s.userSnapshot(ctx, domain.UserID(creditorID))
	if err != nil {
		return domain.Payment{}, err
	}
	p.Debtors, err = s.debtors(ctx, id)
	if err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

func (s *Store) DeletePayment(ctx context.Context, id domain.PaymentID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) participants(ctx context.Context, id domain.GroupID) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `
SELECT gp.user_id, COALESCE(u.name, '')
FROM group_participants gp
LEFT JOIN users u ON u.id = gp.user_id
WHERE gp.group_id = $1
ORDER BY gp.user_id`, id.String())
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) paymentsByGroup(ctx context.Context, id domain.GroupID) ([]domain.Payment, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, group_id, created_at, title, creditor_id
FROM payments
WHERE group_id = $1
ORDER BY created_at DESC, id`, id.String())
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	type row struct {
		payment  domain.Payment
		creditor domain.UserID
	}
	var partial []row
	for rows.Next() {
		var r row
		var creditorID string
		if err := rows.Scan(&r.payment.ID, &r.payment.GroupID, &r.payment.CreatedAt, &r.payment.Title, &creditorID); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		r.creditor = domain.UserID(creditorID)
		partial = append(partial, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	payments := []domain.Payment{}
	for _, r := range partial {
		p := r.payment
		var err error
		p.Creditor, err = s.userSnapshot(ctx, r.creditor)
		if err != nil {
			return nil, err
		}
		p.Debtors, err = s.debtors(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (s *Store) debtors(ctx context.Context, id domain.PaymentID) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `
SELECT pd.user_id, COALESCE(u.name, '')
FROM payment_debtors pd
LEFT JOIN users u ON u.id = pd.user_id
WHERE pd.payment_id = $1
ORDER BY pd.position`, id.String())
	if err != nil {
		return nil, fmt.Errorf("select debtors: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, fmt.Errorf("scan debtor: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// userSnapshot degrades to an ID-only snapshot when the user row is gone.
func (s *Store) userSnapshot(ctx context.Context, id domain.UserID) (domain.User, error) {
	user, err := s.GetUser(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return domain.User{ID: id}, nil
	}
	return user, err
}
