package tx

import (
	"context"
	"database/sql"
	"time"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context so a store can join an operation
// started by a service (e.g. consent write plus audit outbox append committing
// atomically).
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Bound derives a context that bounds a single store round trip. A hit
// deadline surfaces as context.DeadlineExceeded, which the services map to
// store_unavailable. A non-positive timeout returns the parent unchanged.
func Bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
