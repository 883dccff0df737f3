package profile

import (
	"context"

	id "datex/pkg/domain"
)

// Store is the upstream identity/KYC data source feeding the exchange
// gateway: a read-only keyed lookup by provider, fingerprint, and category.
// Writes exist for seeding and for providers pushing updates; the core never
// mutates bundles on the exchange path.
type Store interface {
	FindBundle(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint, category id.DataCategory) (Bundle, error)
	HeldCategories(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint) (id.CategorySet, error)
	SaveBundle(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint, bundle Bundle) error
}
