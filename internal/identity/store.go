package identity

import (
	"context"
	"time"

	id "datex/pkg/domain"
)

// Store persists identification records. Records are append-only: a
// re-identification adds a newer record rather than replacing the old one.
type Store interface {
	Save(ctx context.Context, record IdentificationRecord) error
	// FindLatestValid returns the most recent record for the subject whose
	// validity window contains now. sentinel.ErrNotFound when none exists.
	FindLatestValid(ctx context.Context, subject id.Fingerprint, now time.Time) (IdentificationRecord, error)
}
