package consent

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"datex/internal/profile"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
	audit "datex/pkg/platform/audit"
	"datex/pkg/requestcontext"
)

// =============================================================================
// Test doubles
// =============================================================================

type fakeRegistry struct {
	active map[id.ParticipantID]bool
}

func (f *fakeRegistry) RequireActive(_ context.Context, pid id.ParticipantID) (RegisteredParticipant, error) {
	if !f.active[pid] {
		return RegisteredParticipant{}, dErrors.New(dErrors.CodeUnknownParticipant, "participant not active")
	}
	return RegisteredParticipant{ID: pid, CanExchange: true}, nil
}

type fakeAttestation struct {
	held id.CategorySet
}

func (f *fakeAttestation) HeldCategories(context.Context, id.ParticipantID, id.Fingerprint) (id.CategorySet, error) {
	return f.held, nil
}

type captureAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureAuditor) Emit(_ context.Context, event audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureAuditor) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Action
	}
	return out
}

// =============================================================================
// Consent Service Test Suite
// =============================================================================

type ConsentServiceSuite struct {
	suite.Suite
	store      *InMemoryStore
	registry   *fakeRegistry
	auditor    *captureAuditor
	service    *Service
	requesting id.ParticipantID
	providing  id.ParticipantID
	subject    id.Fingerprint
	now        time.Time
}

func TestConsentServiceSuite(t *testing.T) {
	suite.Run(t, new(ConsentServiceSuite))
}

func (s *ConsentServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.requesting = id.NewParticipantID()
	s.providing = id.NewParticipantID()
	s.registry = &fakeRegistry{active: map[id.ParticipantID]bool{
		s.requesting: true,
		s.providing:  true,
	}}
	s.auditor = &captureAuditor{}
	s.now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	fp, err := id.ComputeFingerprint(id.IdentityInput{
		LastName:      "Keller",
		GivenName:     "Jonas",
		DateOfBirth:   time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC),
		Nationalities: []string{"CH"},
	}, []byte("pepper"))
	s.Require().NoError(err)
	s.subject = fp

	attestation := &fakeAttestation{held: id.NewCategorySet(
		id.CategoryBasicData, id.CategoryContactInformation, id.CategoryKYCData,
	)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(s.store, s.registry, attestation,
		NewTokenIssuer("test-signing-key"), id.DefaultVocabulary(), s.auditor, logger)
}

func (s *ConsentServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ConsentServiceSuite) validInput() CreateInput {
	return CreateInput{
		Subject:               s.subject,
		RequestingParticipant: s.requesting,
		ProvidingParticipant:  s.providing,
		Purpose:               id.PurposeAccountOpening,
		Categories:            []id.DataCategory{id.CategoryBasicData, id.CategoryKYCData},
		TTL:                   7 * 24 * time.Hour,
	}
}

// =============================================================================
// Create
// =============================================================================

func (s *ConsentServiceSuite) TestCreate() {
	s.Run("grants immediately and issues a token", func() {
		result, err := s.service.Create(s.ctx(), s.validInput())
		s.Require().NoError(err)
		s.Equal(StatusGranted, result.Record.Status)
		s.Equal(s.now.Add(7*24*time.Hour), result.Record.ExpiresAt)
		s.NotEmpty(result.Token)
		s.Contains(s.auditor.actions(), string(audit.EventConsentGranted))
	})

	s.Run("identical calls produce independent grants", func() {
		a, err := s.service.Create(s.ctx(), s.validInput())
		s.Require().NoError(err)
		b, err := s.service.Create(s.ctx(), s.validInput())
		s.Require().NoError(err)
		s.NotEqual(a.Record.ID, b.Record.ID)
	})

	s.Run("rejects inactive requesting participant", func() {
		in := s.validInput()
		in.RequestingParticipant = id.NewParticipantID()
		_, err := s.service.Create(s.ctx(), in)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownParticipant))
	})

	s.Run("rejects inactive providing participant", func() {
		in := s.validInput()
		in.ProvidingParticipant = id.NewParticipantID()
		_, err := s.service.Create(s.ctx(), in)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownParticipant))
	})

	s.Run("rejects empty category set", func() {
		in := s.validInput()
		in.Categories = nil
		_, err := s.service.Create(s.ctx(), in)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCategorySet))
	})

	s.Run("rejects unknown category", func() {
		in := s.validInput()
		in.Categories = []id.DataCategory{"telepathyData"}
		_, err := s.service.Create(s.ctx(), in)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCategorySet))
	})

	s.Run("rejects categories the provider does not hold", func() {
		in := s.validInput()
		in.Categories = []id.DataCategory{id.CategoryPortfolioData}
		_, err := s.service.Create(s.ctx(), in)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCategorySet))
	})

	s.Run("rejects ttl above the purpose ceiling", func() {
		in := s.validInput()
		in.TTL = 31 * 24 * time.Hour
		_, err := s.service.Create(s.ctx(), in)
		s.True(dErrors.HasCode(err, dErrors.CodeTTLExceedsPolicy))
	})

	s.Run("rejects non-positive ttl", func() {
		in := s.validInput()
		in.TTL = 0
		_, err := s.service.Create(s.ctx(), in)
		s.True(dErrors.HasCode(err, dErrors.CodeTTLExceedsPolicy))
	})
}

// Attestation backed by the real profile store: a grant can only be created
// once the provider has pushed bundles covering the requested categories.
func (s *ConsentServiceSuite) TestCreate_AttestationFromProfileStore() {
	profiles := profile.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(s.store, s.registry, profiles,
		NewTokenIssuer("test-signing-key"), id.DefaultVocabulary(), s.auditor, logger)

	_, err := svc.Create(s.ctx(), s.validInput())
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCategorySet))

	for _, cat := range []id.DataCategory{id.CategoryBasicData, id.CategoryKYCData} {
		s.Require().NoError(profiles.SaveBundle(context.Background(), s.providing, s.subject, profile.Bundle{
			Category:     cat,
			Data:         map[string]any{"field": "value"},
			Completeness: 1,
		}))
	}

	result, err := svc.Create(s.ctx(), s.validInput())
	s.Require().NoError(err)
	s.Equal(StatusGranted, result.Record.Status)
}

// =============================================================================
// Status and lazy expiry
// =============================================================================

func (s *ConsentServiceSuite) TestStatus() {
	result, err := s.service.Create(s.ctx(), s.validInput())
	s.Require().NoError(err)
	cid := result.Record.ID

	s.Run("granted before expiry", func() {
		status, err := s.service.Status(s.ctx(), cid)
		s.NoError(err)
		s.Equal(StatusGranted, status)
	})

	s.Run("expired after expiry, written back to the store", func() {
		later := requestcontext.WithTime(context.Background(), s.now.Add(8*24*time.Hour))
		status, err := s.service.Status(later, cid)
		s.NoError(err)
		s.Equal(StatusExpired, status)

		stored, err := s.store.FindByID(context.Background(), cid)
		s.Require().NoError(err)
		s.Equal(StatusExpired, stored.Status)

		// Repeated reads stay expired.
		status, err = s.service.Status(later, cid)
		s.NoError(err)
		s.Equal(StatusExpired, status)
	})

	s.Run("unknown id reports consent_not_found", func() {
		_, err := s.service.Status(s.ctx(), id.NewConsentID())
		s.True(dErrors.HasCode(err, dErrors.CodeConsentNotFound))
	})
}

// =============================================================================
// Revoke
// =============================================================================

func (s *ConsentServiceSuite) TestRevoke() {
	s.Run("granted consent moves to revoked with actor recorded", func() {
		result, err := s.service.Create(s.ctx(), s.validInput())
		s.Require().NoError(err)

		s.Require().NoError(s.service.Revoke(s.ctx(), result.Record.ID, "customer"))
		stored, err := s.store.FindByID(context.Background(), result.Record.ID)
		s.Require().NoError(err)
		s.Equal(StatusRevoked, stored.Status)
		s.Equal("customer", stored.RevokedBy)
		s.Contains(s.auditor.actions(), string(audit.EventConsentRevoked))
	})

	s.Run("revoke is idempotent", func() {
		result, err := s.service.Create(s.ctx(), s.validInput())
		s.Require().NoError(err)

		s.NoError(s.service.Revoke(s.ctx(), result.Record.ID, "customer"))
		s.NoError(s.service.Revoke(s.ctx(), result.Record.ID, "someone-else"))

		stored, err := s.store.FindByID(context.Background(), result.Record.ID)
		s.Require().NoError(err)
		s.Equal("customer", stored.RevokedBy, "second revoke must not overwrite the first")
	})

	s.Run("revoking an expired consent leaves it expired", func() {
		result, err := s.service.Create(s.ctx(), s.validInput())
		s.Require().NoError(err)

		later := requestcontext.WithTime(context.Background(), s.now.Add(30*24*time.Hour))
		s.NoError(s.service.Revoke(later, result.Record.ID, "customer"))

		stored, err := s.store.FindByID(context.Background(), result.Record.ID)
		s.Require().NoError(err)
		s.Equal(StatusExpired, stored.Status)
	})
}

// =============================================================================
// Resolve and usable-consent lookups
// =============================================================================

func (s *ConsentServiceSuite) TestResolve() {
	result, err := s.service.Create(s.ctx(), s.validInput())
	s.Require().NoError(err)

	s.Run("valid token resolves to the record", func() {
		record, err := s.service.Resolve(s.ctx(), result.Token)
		s.Require().NoError(err)
		s.Equal(result.Record.ID, record.ID)
	})

	s.Run("garbage token reports consent_invalid", func() {
		_, err := s.service.Resolve(s.ctx(), "not.a.token")
		s.True(dErrors.HasCode(err, dErrors.CodeConsentInvalid))
	})

	s.Run("token signed with a different key reports consent_invalid", func() {
		otherToken, err := NewTokenIssuer("other-key").Issue(result.Record)
		s.Require().NoError(err)
		_, err = s.service.Resolve(s.ctx(), otherToken)
		s.True(dErrors.HasCode(err, dErrors.CodeConsentInvalid))
	})

	s.Run("revocation wins against a still-valid token", func() {
		s.Require().NoError(s.service.Revoke(s.ctx(), result.Record.ID, "customer"))
		record, err := s.service.Resolve(s.ctx(), result.Token)
		s.Require().NoError(err)
		s.Equal(StatusRevoked, record.Status)
	})
}

func (s *ConsentServiceSuite) TestHasUsableConsent() {
	_, err := s.service.Create(s.ctx(), s.validInput())
	s.Require().NoError(err)

	s.Run("covered category from the requesting participant", func() {
		ok, err := s.service.HasUsableConsent(s.ctx(), s.subject, s.requesting, id.CategoryKYCData)
		s.NoError(err)
		s.True(ok)
	})

	s.Run("category outside the grant", func() {
		ok, err := s.service.HasUsableConsent(s.ctx(), s.subject, s.requesting, id.CategoryPortfolioData)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("different requesting participant", func() {
		ok, err := s.service.HasUsableConsent(s.ctx(), s.subject, id.NewParticipantID(), id.CategoryKYCData)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("expired grants do not count", func() {
		later := requestcontext.WithTime(context.Background(), s.now.Add(60*24*time.Hour))
		ok, err := s.service.HasUsableConsent(later, s.subject, s.requesting, id.CategoryKYCData)
		s.NoError(err)
		s.False(ok)
	})
}

func (s *ConsentServiceSuite) TestHasAnyActiveConsent() {
	ok, err := s.service.HasAnyActiveConsent(s.ctx(), s.subject)
	s.NoError(err)
	s.False(ok)

	_, err = s.service.Create(s.ctx(), s.validInput())
	s.Require().NoError(err)

	ok, err = s.service.HasAnyActiveConsent(s.ctx(), s.subject)
	s.NoError(err)
	s.True(ok)
}
