package audit

import "context"

// Store persists audit events. Entries are append-only and immutable once
// written; there is deliberately no update or delete operation.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
