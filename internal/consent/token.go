package consent

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
)

// tokenClaims bind a consent token to one grant and one subject. The token is
// opaque to callers; only this core reads it.
type tokenClaims struct {
	ConsentID string `json:"consent_id"`
	Subject   string `json:"sub_fp"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies consent tokens. A token proves possession of
// an active grant; validity is still re-checked against the store on every
// use, so a token never outlives a revocation.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
}

func NewTokenIssuer(signingKey string) *TokenIssuer {
	return &TokenIssuer{signingKey: []byte(signingKey), issuer: "datex-core"}
}

// Issue mints a token whose lifetime matches the consent expiry.
func (t *TokenIssuer) Issue(record Record) (string, error) {
	claims := tokenClaims{
		ConsentID: record.ID.String(),
		Subject:   record.Subject.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(record.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
			ID:        record.ID.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "could not sign consent token", err)
	}
	return signed, nil
}

// Verify checks signature and structure and returns the referenced consent id
// and subject. Expiry of the token itself is deliberately NOT rejected here:
// the store record is authoritative for expiry so that token-expired and
// consent-expired cannot disagree.
func (t *TokenIssuer) Verify(tokenString string) (id.ConsentID, id.Fingerprint, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.signingKey, nil
	},
		jwt.WithoutClaimsValidation(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || claims.Issuer != t.issuer {
		return id.ConsentID{}, "", dErrors.New(dErrors.CodeConsentInvalid, "consent token is not valid")
	}
	cid, err := id.ParseConsentID(claims.ConsentID)
	if err != nil {
		return id.ConsentID{}, "", dErrors.New(dErrors.CodeConsentInvalid, "consent token is not valid")
	}
	fp, err := id.ParseFingerprint(claims.Subject)
	if err != nil {
		return id.ConsentID{}, "", dErrors.New(dErrors.CodeConsentInvalid, "consent token is not valid")
	}
	return cid, fp, nil
}
