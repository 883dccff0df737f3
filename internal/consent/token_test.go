package consent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
)

func tokenTestRecord(t *testing.T) Record {
	t.Helper()
	fp, err := id.ComputeFingerprint(id.IdentityInput{
		LastName:      "Vogel",
		GivenName:     "Mara",
		DateOfBirth:   time.Date(1979, 11, 2, 0, 0, 0, 0, time.UTC),
		Nationalities: []string{"AT"},
	}, []byte("pepper"))
	require.NoError(t, err)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	return Record{
		ID:        id.NewConsentID(),
		Subject:   fp,
		Status:    StatusGranted,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret")
	record := tokenTestRecord(t)

	token, err := issuer.Issue(record)
	require.NoError(t, err)

	cid, fp, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, record.ID, cid)
	assert.Equal(t, record.Subject, fp)
}

func TestTokenIssuer_RejectsForeignSignature(t *testing.T) {
	record := tokenTestRecord(t)
	token, err := NewTokenIssuer("key-a").Issue(record)
	require.NoError(t, err)

	_, _, err = NewTokenIssuer("key-b").Verify(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConsentInvalid))
}

func TestTokenIssuer_ExpiredTokenStillParses(t *testing.T) {
	// The store record is authoritative for expiry. A token whose exp claim
	// has passed must still verify so the gateway can report the record's
	// expired state instead of a generic token error.
	issuer := NewTokenIssuer("secret")
	record := tokenTestRecord(t)
	record.CreatedAt = time.Now().Add(-2 * time.Hour)
	record.ExpiresAt = time.Now().Add(-time.Hour)

	token, err := issuer.Issue(record)
	require.NoError(t, err)

	cid, _, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, record.ID, cid)
}

func TestTokenIssuer_RejectsTampering(t *testing.T) {
	issuer := NewTokenIssuer("secret")
	token, err := issuer.Issue(tokenTestRecord(t))
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"
	_, _, err = issuer.Verify(tampered)
	assert.Error(t, err)
}
