package consent

import (
	"context"
	"time"

	id "datex/pkg/domain"
)

// Store persists consent records.
//
// Implementations must make per-id operations linearizable: a revoke or
// expiry write that commits before a read starts is visible to that read.
// Across different consent ids there is no ordering guarantee.
type Store interface {
	Create(ctx context.Context, record Record) error
	FindByID(ctx context.Context, cid id.ConsentID) (Record, error)
	// UpdateStatus transitions the record's status, recording actor and
	// timestamp for revocations. Implementations must re-check expiry under
	// the write lock: a transition to revoked on an already-expired record
	// leaves it expired.
	UpdateStatus(ctx context.Context, cid id.ConsentID, to Status, actor string, at time.Time) error
	ListBySubject(ctx context.Context, subject id.Fingerprint, requesting id.ParticipantID, status Status) ([]Record, error)
}
