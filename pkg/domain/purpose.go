package domain

import (
	"time"

	dErrors "datex/pkg/domain-errors"
)

// ConsentPurpose is a domain value that identifies why data is exchanged.
// Purpose binding allows selective revocation and per-purpose TTL policy.
//
// Usage: construct via ParseConsentPurpose at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type ConsentPurpose string

// Supported consent purposes.
const (
	PurposeAccountOpening   ConsentPurpose = "account_opening"
	PurposeReIdentification ConsentPurpose = "re_identification"
	PurposeAgeVerification  ConsentPurpose = "age_verification"
	PurposeEVVSync          ConsentPurpose = "evv_sync"
)

// maxTTLByPurpose is the policy ceiling for consent lifetime per purpose. A
// requested TTL above the ceiling is rejected, never silently clamped.
var maxTTLByPurpose = map[ConsentPurpose]time.Duration{
	PurposeAccountOpening:   30 * 24 * time.Hour,
	PurposeReIdentification: 365 * 24 * time.Hour,
	PurposeAgeVerification:  24 * time.Hour,
	PurposeEVVSync:          90 * 24 * time.Hour,
}

// ParseConsentPurpose constructs a ConsentPurpose from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseConsentPurpose(s string) (ConsentPurpose, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purpose cannot be empty")
	}
	p := ConsentPurpose(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid purpose: "+s)
	}
	return p, nil
}

// IsValid checks if the purpose is one of the supported enum values.
func (p ConsentPurpose) IsValid() bool {
	_, ok := maxTTLByPurpose[p]
	return ok
}

// MaxTTL returns the policy ceiling for this purpose.
func (p ConsentPurpose) MaxTTL() time.Duration {
	return maxTTLByPurpose[p]
}

// String returns the string representation of the purpose.
func (p ConsentPurpose) String() string {
	return string(p)
}
