package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	dErrors "datex/pkg/domain-errors"
)

// Fingerprint is the one-way cross-institution join key for a customer. Two
// institutions holding the same person derive the same fingerprint without
// ever exchanging raw identity data.
//
// Invariant: computation is stable (same logical person, same fingerprint) and
// irreversible. Normalization happens before hashing; a mismatch can never be
// corrected by rehashing later.
type Fingerprint string

// IdentityInput is the stable tuple a fingerprint is derived from.
type IdentityInput struct {
	LastName      string
	GivenName     string
	DateOfBirth   time.Time
	Nationalities []string
}

// Validate enforces that every tuple field is present and non-empty.
func (in IdentityInput) Validate() error {
	if strings.TrimSpace(in.LastName) == "" {
		return dErrors.New(dErrors.CodeInvalidIdentityInput, "last name is required")
	}
	if strings.TrimSpace(in.GivenName) == "" {
		return dErrors.New(dErrors.CodeInvalidIdentityInput, "given name is required")
	}
	if in.DateOfBirth.IsZero() {
		return dErrors.New(dErrors.CodeInvalidIdentityInput, "date of birth is required")
	}
	if len(in.Nationalities) == 0 {
		return dErrors.New(dErrors.CodeInvalidIdentityInput, "at least one nationality is required")
	}
	for _, n := range in.Nationalities {
		if strings.TrimSpace(n) == "" {
			return dErrors.New(dErrors.CodeInvalidIdentityInput, "nationality entries must be non-empty")
		}
	}
	return nil
}

// ComputeFingerprint derives the fingerprint for a normalized identity tuple.
// The pepper is a deployment-wide secret that keeps the digest from being
// brute-forced over known name/birthdate combinations.
func ComputeFingerprint(in IdentityInput, pepper []byte) (Fingerprint, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	nats := make([]string, 0, len(in.Nationalities))
	seen := make(map[string]bool, len(in.Nationalities))
	for _, n := range in.Nationalities {
		norm := normalizeField(n)
		if !seen[norm] {
			seen[norm] = true
			nats = append(nats, norm)
		}
	}
	sort.Strings(nats)

	canonical := strings.Join([]string{
		normalizeField(in.LastName),
		normalizeField(in.GivenName),
		in.DateOfBirth.UTC().Format("2006-01-02"),
		strings.Join(nats, ","),
	}, "|")

	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(canonical))
	return Fingerprint(hex.EncodeToString(mac.Sum(nil))), nil
}

// ParseFingerprint validates an externally supplied fingerprint string.
func ParseFingerprint(s string) (Fingerprint, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint cannot be empty")
	}
	if len(s) != sha256.Size*2 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint has wrong length")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint is not hex-encoded")
	}
	return Fingerprint(s), nil
}

func (f Fingerprint) String() string { return string(f) }
func (f Fingerprint) IsNil() bool    { return f == "" }

// normalizeField case-folds and collapses all interior whitespace so that
// "  Müller " and "MÜLLER" hash identically.
func normalizeField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
