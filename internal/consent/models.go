package consent

import (
	"time"

	id "datex/pkg/domain"
)

// Status is the consent lifecycle state.
//
// State machine: granted -> {expired, revoked}. Expired is reached only by
// time passing and is terminal. Revoked is terminal from any state and is
// never left again. Pending exists in the model for a future approval
// workflow; creation currently grants immediately.
type Status string

const (
	StatusPending Status = "pending"
	StatusGranted Status = "granted"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Record is an authorization grant: one subject, one requesting/providing
// institution pair, one purpose, a non-empty category set, and a mandatory
// expiry. Immutable once created except for the status field.
type Record struct {
	ID                    id.ConsentID
	Subject               id.Fingerprint
	RequestingParticipant id.ParticipantID
	ProvidingParticipant  id.ParticipantID
	Purpose               id.ConsentPurpose
	Categories            id.CategorySet
	Status                Status
	CreatedAt             time.Time
	ExpiresAt             time.Time
	RevokedAt             *time.Time
	RevokedBy             string
}

// EffectiveStatus computes the logical status at the given time. A granted
// record whose expiry has passed is logically expired even before the store
// reflects it; revoked always wins.
func (r Record) EffectiveStatus(now time.Time) Status {
	if r.Status == StatusRevoked {
		return StatusRevoked
	}
	if r.Status == StatusGranted && !now.Before(r.ExpiresAt) {
		return StatusExpired
	}
	return r.Status
}

// IsUsable reports whether data may be released under this consent now.
func (r Record) IsUsable(now time.Time) bool {
	return r.EffectiveStatus(now) == StatusGranted
}
