package participant

import (
	"time"

	id "datex/pkg/domain"
)

// TrustLevel grades how a participant's identity was attested during
// registration.
type TrustLevel string

const (
	TrustSovereign     TrustLevel = "sovereign"
	TrustRegulatory    TrustLevel = "regulatory"
	TrustInstitutional TrustLevel = "institutional"
	TrustGovernmental  TrustLevel = "governmental"
)

// Status is the participant lifecycle state. Participants are never hard
// deleted; revoked supersedes the record.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
)

// Capability names an operation class a participant is certified for.
type Capability string

const (
	CapabilityCustomerDataExchange Capability = "customer_data_exchange"
	CapabilityKYCVerification      Capability = "kyc_verification"
)

// Participant is an institution registered with the trust registry.
type Participant struct {
	ID           id.ParticipantID
	Name         string
	Industry     string
	TrustLevel   TrustLevel
	Status       Status
	Capabilities []Capability
	NotBefore    time.Time
	NotAfter     time.Time
	// SecretHash is the bcrypt hash of the participant's API key. The plain
	// key is returned exactly once, at registration or rotation.
	SecretHash string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsActive reports whether the participant may act at the given time: status
// active and inside the validity window.
func (p Participant) IsActive(now time.Time) bool {
	if p.Status != StatusActive {
		return false
	}
	if !p.NotBefore.IsZero() && now.Before(p.NotBefore) {
		return false
	}
	if !p.NotAfter.IsZero() && now.After(p.NotAfter) {
		return false
	}
	return true
}

// HasCapability reports whether the participant is certified for cap.
func (p Participant) HasCapability(cap Capability) bool {
	for _, c := range p.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}
