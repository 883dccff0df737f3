package exchange

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"datex/internal/consent"
	"datex/internal/platform/metrics"
	"datex/internal/profile"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
	audit "datex/pkg/platform/audit"
	auditmemory "datex/pkg/platform/audit/store/memory"
	"datex/pkg/requestcontext"
)

type fakeResolver struct {
	record consent.Record
	err    error
}

func (f *fakeResolver) Resolve(context.Context, string) (consent.Record, error) {
	return f.record, f.err
}

type ExchangeServiceSuite struct {
	suite.Suite
	resolver   *fakeResolver
	profiles   *profile.InMemoryStore
	auditStore *auditmemory.Store
	service    *Service
	subject    id.Fingerprint
	provider   id.ParticipantID
	now        time.Time
}

func TestExchangeServiceSuite(t *testing.T) {
	suite.Run(t, new(ExchangeServiceSuite))
}

var exchangeMetrics *metrics.Metrics

// Prometheus collectors register globally, so the suite shares one set.
func (s *ExchangeServiceSuite) SetupSuite() {
	if exchangeMetrics == nil {
		exchangeMetrics = metrics.New()
	}
}

func (s *ExchangeServiceSuite) SetupTest() {
	s.now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s.provider = id.NewParticipantID()

	fp, err := id.ComputeFingerprint(id.IdentityInput{
		LastName:      "Schreiber",
		GivenName:     "Paul",
		DateOfBirth:   time.Date(1988, 7, 14, 0, 0, 0, 0, time.UTC),
		Nationalities: []string{"DE"},
	}, []byte("pepper"))
	s.Require().NoError(err)
	s.subject = fp

	s.resolver = &fakeResolver{record: consent.Record{
		ID:                    id.NewConsentID(),
		Subject:               s.subject,
		RequestingParticipant: id.NewParticipantID(),
		ProvidingParticipant:  s.provider,
		Purpose:               id.PurposeAccountOpening,
		Categories:            id.NewCategorySet(id.CategoryBasicData, id.CategoryContactInformation),
		Status:                consent.StatusGranted,
		CreatedAt:             s.now.Add(-time.Hour),
		ExpiresAt:             s.now.Add(time.Hour),
	}}

	s.profiles = profile.NewInMemoryStore()
	s.Require().NoError(s.profiles.SaveBundle(context.Background(), s.provider, s.subject, profile.Bundle{
		Category:     id.CategoryBasicData,
		Data:         map[string]any{"lastName": "Schreiber", "givenName": "Paul"},
		Completeness: 1,
	}))
	s.Require().NoError(s.profiles.SaveBundle(context.Background(), s.provider, s.subject, profile.Bundle{
		Category:     id.CategoryContactInformation,
		Data:         map[string]any{"email": "paul@example.com"},
		Completeness: 0.8,
	}))

	s.auditStore = auditmemory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(s.resolver, s.profiles, audit.NewPublisher(s.auditStore), exchangeMetrics, logger)
}

func (s *ExchangeServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ExchangeServiceSuite) auditActions() []string {
	events, err := s.auditStore.ListBySubject(context.Background(), s.subject.String())
	s.Require().NoError(err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

func (s *ExchangeServiceSuite) TestFetch_ReleasesGrantedCategories() {
	result, err := s.service.Fetch(s.ctx(), FetchInput{
		Subject:    s.subject,
		Token:      "token",
		Categories: []id.DataCategory{id.CategoryBasicData},
	})
	s.Require().NoError(err)
	s.Len(result.Bundles, 1)
	s.Equal("Schreiber", result.Bundles[id.CategoryBasicData].Data["lastName"])
	s.Contains(s.auditActions(), string(audit.EventDataReleased))
}

func (s *ExchangeServiceSuite) TestFetch_DefaultsToFullGrant() {
	result, err := s.service.Fetch(s.ctx(), FetchInput{Subject: s.subject, Token: "token"})
	s.Require().NoError(err)
	s.Len(result.Bundles, 2)
}

func (s *ExchangeServiceSuite) TestFetch_CategoryOutsideGrant() {
	result, err := s.service.Fetch(s.ctx(), FetchInput{
		Subject:    s.subject,
		Token:      "token",
		Categories: []id.DataCategory{id.CategoryBasicData, id.CategoryPortfolioData},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeCategoryNotGranted))
	s.Empty(result.Bundles, "partial release must not happen")
	s.Contains(s.auditActions(), string(audit.EventAccessDenied))
}

func (s *ExchangeServiceSuite) TestFetch_InvalidToken() {
	s.resolver.err = dErrors.New(dErrors.CodeConsentInvalid, "consent token is not valid")
	s.resolver.record = consent.Record{}

	_, err := s.service.Fetch(s.ctx(), FetchInput{Subject: s.subject, Token: "bad"})
	s.True(dErrors.HasCode(err, dErrors.CodeConsentInvalid))
	s.Contains(s.auditActions(), string(audit.EventAccessDenied))
}

func (s *ExchangeServiceSuite) TestFetch_StoreOutageIsNotADenial() {
	s.resolver.err = dErrors.Wrap(dErrors.CodeStoreUnavailable, "consent store unavailable", context.DeadlineExceeded)
	s.resolver.record = consent.Record{}

	_, err := s.service.Fetch(s.ctx(), FetchInput{Subject: s.subject, Token: "token"})
	s.True(dErrors.HasCode(err, dErrors.CodeStoreUnavailable))
	s.NotContains(s.auditActions(), string(audit.EventAccessDenied))
}

func (s *ExchangeServiceSuite) TestFetch_SubjectMismatch() {
	other, err := id.ComputeFingerprint(id.IdentityInput{
		LastName:      "Andere",
		GivenName:     "Person",
		DateOfBirth:   time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		Nationalities: []string{"DE"},
	}, []byte("pepper"))
	s.Require().NoError(err)

	_, err = s.service.Fetch(s.ctx(), FetchInput{Subject: other, Token: "token"})
	s.True(dErrors.HasCode(err, dErrors.CodeConsentInvalid))
}

func (s *ExchangeServiceSuite) TestFetch_RevokedConsent() {
	s.resolver.record.Status = consent.StatusRevoked

	_, err := s.service.Fetch(s.ctx(), FetchInput{Subject: s.subject, Token: "token"})
	s.True(dErrors.HasCode(err, dErrors.CodeConsentInvalid))
	s.Contains(s.auditActions(), string(audit.EventAccessDenied))
}

func (s *ExchangeServiceSuite) TestFetch_ExpiredConsent() {
	later := requestcontext.WithTime(context.Background(), s.now.Add(2*time.Hour))

	_, err := s.service.Fetch(later, FetchInput{Subject: s.subject, Token: "token"})
	s.True(dErrors.HasCode(err, dErrors.CodeConsentInvalid))
}

func (s *ExchangeServiceSuite) TestFetch_MissingBundleSkipped() {
	s.resolver.record.Categories = id.NewCategorySet(
		id.CategoryBasicData, id.CategoryAddressData)

	result, err := s.service.Fetch(s.ctx(), FetchInput{Subject: s.subject, Token: "token"})
	s.Require().NoError(err)
	s.Len(result.Bundles, 1, "granted but unheld categories are absent, not errors")
	s.Contains(result.Bundles, id.CategoryBasicData)
}
