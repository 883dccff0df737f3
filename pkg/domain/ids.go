package domain

import (
	"github.com/google/uuid"

	dErrors "datex/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types keep a consent id from being passed
// where a participant id is expected; the compiler enforces the distinction.
type (
	ConsentID     uuid.UUID
	ParticipantID uuid.UUID
	AuditEntryID  uuid.UUID
)

// NewConsentID returns a fresh random consent identifier.
func NewConsentID() ConsentID { return ConsentID(uuid.New()) }

// NewParticipantID returns a fresh random participant identifier.
func NewParticipantID() ParticipantID { return ParticipantID(uuid.New()) }

// NewAuditEntryID returns a fresh random audit entry identifier.
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

// ParseConsentID constructs a ConsentID from external input.
// Invariant: IDs must be valid, non-nil UUIDs.
func ParseConsentID(s string) (ConsentID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ConsentID{}, err
	}
	return ConsentID(u), nil
}

// ParseParticipantID constructs a ParticipantID from external input.
func ParseParticipantID(s string) (ParticipantID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ParticipantID{}, err
	}
	return ParticipantID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

func (id ConsentID) String() string     { return uuid.UUID(id).String() }
func (id ConsentID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ParticipantID) String() string { return uuid.UUID(id).String() }
func (id ParticipantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) String() string  { return uuid.UUID(id).String() }
func (id AuditEntryID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
