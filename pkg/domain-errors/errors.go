// Package domainerrors defines coded domain errors shared across services and
// transports. Services return these; the HTTP layer translates codes to status
// codes without inspecting error strings. Import aliased as dErrors.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain failure. Codes are part of the public API
// contract: callers branch on them to decide between requesting a new consent,
// requesting a broader one, or treating the failure as permanent.
type Code string

const (
	// Validation failures. Surfaced synchronously, never retried.
	CodeInvalidIdentityInput Code = "invalid_identity_input"
	CodeUnknownParticipant   Code = "unknown_participant"
	CodeInvalidCategorySet   Code = "invalid_category_set"
	CodeTTLExceedsPolicy     Code = "ttl_exceeds_policy"
	CodeInvalidInput         Code = "invalid_input"
	CodeBadRequest           Code = "bad_request"

	// Business-logic denials. Audited before being returned.
	CodeConsentNotFound     Code = "consent_not_found"
	CodeConsentInvalid      Code = "consent_invalid"
	CodeCategoryNotGranted  Code = "category_not_granted"
	CodeInsufficientConsent Code = "insufficient_consent"

	// Infrastructure. StoreUnavailable is the one retryable class.
	CodeStoreUnavailable Code = "store_unavailable"
	CodeNotFound         Code = "not_found"
	CodeUnauthorized     Code = "unauthorized"
	CodeInternal         Code = "internal"
)

// DomainError carries a machine-readable code plus a human-readable reason.
type DomainError struct {
	Code   Code
	Reason string
	cause  error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *DomainError) Unwrap() error { return e.cause }

// New constructs a DomainError with the given code and reason.
func New(code Code, reason string) error {
	return &DomainError{Code: code, Reason: reason}
}

// Wrap attaches a code and reason to an underlying cause.
func Wrap(code Code, reason string, cause error) error {
	return &DomainError{Code: code, Reason: reason, cause: cause}
}

// HasCode reports whether err (or anything it wraps) is a DomainError with the
// given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in this package.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ReasonOf extracts the human-readable reason, falling back to the error text.
func ReasonOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Reason
	}
	return err.Error()
}

// ToHTTPStatus maps a domain code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidIdentityInput, CodeInvalidCategorySet, CodeTTLExceedsPolicy,
		CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnknownParticipant:
		return http.StatusUnprocessableEntity
	case CodeConsentNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeConsentInvalid, CodeCategoryNotGranted, CodeInsufficientConsent:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
