// Package adapters bridges the trust registry into the consent manager's
// narrower view of a participant.
package adapters

import (
	"context"

	"datex/internal/consent"
	"datex/internal/participant"
	id "datex/pkg/domain"
)

// Registry adapts participant.Service to consent.ParticipantRegistry.
type Registry struct {
	participants *participant.Service
}

func NewRegistry(participants *participant.Service) *Registry {
	return &Registry{participants: participants}
}

// RequireActive resolves the participant and projects it onto the capability
// facts consent creation cares about.
func (r *Registry) RequireActive(ctx context.Context, pid id.ParticipantID) (consent.RegisteredParticipant, error) {
	p, err := r.participants.RequireActive(ctx, pid)
	if err != nil {
		return consent.RegisteredParticipant{}, err
	}
	return consent.RegisteredParticipant{
		ID:           p.ID,
		Name:         p.Name,
		CanExchange:  p.HasCapability(participant.CapabilityCustomerDataExchange),
		CanVerifyKYC: p.HasCapability(participant.CapabilityKYCVerification),
	}, nil
}
