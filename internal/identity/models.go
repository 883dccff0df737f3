package identity

import (
	"time"

	id "datex/pkg/domain"
)

// LevelOfAssurance grades how strongly a prior identification verified the
// person. Carried forward on data reuse so a relying institution can decide
// whether the old verification is good enough.
type LevelOfAssurance string

const (
	AssuranceLow         LevelOfAssurance = "low"
	AssuranceSubstantial LevelOfAssurance = "substantial"
	AssuranceHigh        LevelOfAssurance = "high"
)

// IdentificationRecord is one completed identity verification of a subject by
// a participant.
type IdentificationRecord struct {
	Subject      id.Fingerprint
	Assurance    LevelOfAssurance
	IdentifiedBy id.ParticipantID
	IdentifiedAt time.Time
	ValidUntil   time.Time
}

// IsValid reports whether the verification is still inside its validity
// window.
func (r IdentificationRecord) IsValid(now time.Time) bool {
	return now.Before(r.ValidUntil)
}

// MatchResult is the outcome of a customer recognition lookup. When no match
// exists only the fingerprint is populated, which permits an idempotent first
// registration.
type MatchResult struct {
	Matched      bool
	Fingerprint  id.Fingerprint
	Assurance    LevelOfAssurance
	IdentifiedAt time.Time
	ValidUntil   time.Time
}
