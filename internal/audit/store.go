package audit

import "context"

// Store is the outbox. Append is on the mutation critical path; Pending and
// MarkPublished are the worker's side of the contract.
type Store interface {
	Append(ctx context.Context, event Event) error
	// Pending returns up to limit unpublished events, oldest first.
	Pending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string) error
}
