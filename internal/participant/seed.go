package participant

import (
	"context"
	"log/slog"
	"time"

	id "datex/pkg/domain"
)

// SeedDev loads a small fixed set of participants for local development so
// the consent and exchange flows can be exercised without a registration
// round trip. The API key for every seeded participant is "dev-key" and the
// ids are stable across restarts.
func SeedDev(ctx context.Context, store Store, logger *slog.Logger) error {
	hash, err := HashSecret("dev-key")
	if err != nil {
		return err
	}
	now := time.Now()
	seeds := []Participant{
		{
			ID:         mustParticipantID("6d0a2b52-9f10-4b4e-8f4f-2b1b1a6a0001"),
			Name:       "Alpenbank AG",
			Industry:   "banking",
			TrustLevel: TrustInstitutional,
			Status:     StatusActive,
			Capabilities: []Capability{
				CapabilityCustomerDataExchange, CapabilityKYCVerification,
			},
		},
		{
			ID:         mustParticipantID("6d0a2b52-9f10-4b4e-8f4f-2b1b1a6a0002"),
			Name:       "Nordversicherung SE",
			Industry:   "insurance",
			TrustLevel: TrustInstitutional,
			Status:     StatusActive,
			Capabilities: []Capability{
				CapabilityCustomerDataExchange,
			},
		},
		{
			ID:         mustParticipantID("6d0a2b52-9f10-4b4e-8f4f-2b1b1a6a0003"),
			Name:       "Bundesregister",
			Industry:   "government",
			TrustLevel: TrustSovereign,
			Status:     StatusActive,
			Capabilities: []Capability{
				CapabilityKYCVerification,
			},
		},
	}
	for _, p := range seeds {
		p.SecretHash = hash
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := store.Save(ctx, p); err != nil {
			return err
		}
		logger.Info("seeded participant", "id", p.ID.String(), "name", p.Name)
	}
	return nil
}

func mustParticipantID(s string) id.ParticipantID {
	pid, err := id.ParseParticipantID(s)
	if err != nil {
		panic(err)
	}
	return pid
}
