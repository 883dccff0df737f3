package participant

import (
	"context"

	id "datex/pkg/domain"
)

// Store persists participant records. Implementations return sentinel errors
// (sentinel.ErrNotFound) for factual states; the service translates them into
// domain errors.
type Store interface {
	Save(ctx context.Context, p Participant) error
	FindByID(ctx context.Context, pid id.ParticipantID) (Participant, error)
	ListByIndustry(ctx context.Context, industry string, status Status) ([]Participant, error)
}
