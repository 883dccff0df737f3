package audit

import (
	"time"

	id "datex/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and
	// forensics, including every denied data access.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        id.AuditEntryID
	Category  EventCategory
	Timestamp time.Time
	// Subject is the customer fingerprint the action concerns. Never raw PII.
	Subject string
	Action  string
	Purpose string
	// ConsentID references the grant under which data moved, when applicable.
	ConsentID string
	// RequestingParticipant is the institution that triggered the action.
	RequestingParticipant string
	// CategoriesReleased lists the data categories actually handed out on a
	// successful fetch.
	CategoriesReleased []string
	Decision           string
	Reason             string
	RequestID          string
	ClientIP           string
	UserAgent          string
	// ActorID tracks who performed the action when different from the
	// requesting participant (e.g. customer-initiated revocation).
	ActorID string
}

type AuditEvent string

const (
	// Consent events
	EventConsentGranted AuditEvent = "consent_granted"
	EventConsentRevoked AuditEvent = "consent_revoked"
	EventConsentChecked AuditEvent = "consent_checked"

	// Exchange events
	EventDataReleased AuditEvent = "data_released"
	EventAccessDenied AuditEvent = "access_denied"

	// Identity events
	EventCustomerMatched AuditEvent = "customer_matched"

	// Checks events
	EventChecksPerformed AuditEvent = "checks_performed"

	// Participant events
	EventParticipantRegistered  AuditEvent = "participant_registered"
	EventParticipantSuspended   AuditEvent = "participant_suspended"
	EventParticipantReactivated AuditEvent = "participant_reactivated"
	EventParticipantRevoked     AuditEvent = "participant_revoked"
	EventSecretRotated          AuditEvent = "participant_secret_rotated"
)

// eventCategories maps each audit event to its category and is the single
// source of truth for routing and retention.
var eventCategories = map[AuditEvent]EventCategory{
	EventConsentGranted:         CategoryCompliance,
	EventConsentRevoked:         CategoryCompliance,
	EventDataReleased:           CategoryCompliance,
	EventChecksPerformed:        CategoryCompliance,
	EventParticipantRegistered:  CategoryCompliance,
	EventAccessDenied:           CategorySecurity,
	EventParticipantSuspended:   CategorySecurity,
	EventParticipantRevoked:     CategorySecurity,
	EventSecretRotated:          CategorySecurity,
	EventConsentChecked:         CategoryOperations,
	EventCustomerMatched:        CategoryOperations,
	EventParticipantReactivated: CategoryOperations,
}

// Category resolves the event's routing category. Unknown actions route to
// operations.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}
