package checks

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"datex/internal/profile"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
	audit "datex/pkg/platform/audit"
	auditmemory "datex/pkg/platform/audit/store/memory"
	"datex/pkg/requestcontext"
)

// fakeGate grants consent per category.
type fakeGate struct {
	granted map[id.DataCategory]bool
	err     error
}

func (f *fakeGate) HasUsableConsent(_ context.Context, _ id.Fingerprint, _ id.ParticipantID, category id.DataCategory) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.granted[category], nil
}

type ChecksServiceSuite struct {
	suite.Suite
	profiles   *profile.InMemoryStore
	gate       *fakeGate
	auditStore *auditmemory.Store
	service    *Service
	subject    id.Fingerprint
	provider   id.ParticipantID
	now        time.Time
}

func TestChecksServiceSuite(t *testing.T) {
	suite.Run(t, new(ChecksServiceSuite))
}

func (s *ChecksServiceSuite) SetupTest() {
	s.now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s.provider = id.NewParticipantID()

	fp, err := id.ComputeFingerprint(id.IdentityInput{
		LastName:      "Winter",
		GivenName:     "Clara",
		DateOfBirth:   time.Date(1995, 5, 5, 0, 0, 0, 0, time.UTC),
		Nationalities: []string{"DE"},
	}, []byte("pepper"))
	s.Require().NoError(err)
	s.subject = fp

	s.profiles = profile.NewInMemoryStore()
	s.gate = &fakeGate{granted: map[id.DataCategory]bool{
		id.CategoryComplianceData: true,
		id.CategoryBasicData:      true,
		id.CategoryKYCData:        true,
	}}
	s.auditStore = auditmemory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(DefaultCheckers(s.profiles), s.gate,
		audit.NewPublisher(s.auditStore), logger)
}

func (s *ChecksServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ChecksServiceSuite) saveBundle(category id.DataCategory, data map[string]any) {
	s.Require().NoError(s.profiles.SaveBundle(context.Background(), s.provider, s.subject, profile.Bundle{
		Category: category,
		Data:     data,
	}))
}

func (s *ChecksServiceSuite) perform(reqs ...CheckRequest) Report {
	report, err := s.service.Perform(s.ctx(), PerformInput{
		Subject:  s.subject,
		Provider: s.provider,
		Checks:   reqs,
	})
	s.Require().NoError(err)
	return report
}

func (s *ChecksServiceSuite) resultFor(report Report, t CheckType) CheckResult {
	for _, r := range report.Results {
		if r.Type == t {
			return r
		}
	}
	s.FailNow("no result for check " + string(t))
	return CheckResult{}
}

func (s *ChecksServiceSuite) TestPerform_CleanSubject() {
	s.saveBundle(id.CategoryComplianceData, map[string]any{
		"sanctionsListed": false, "pepStatus": false, "adverseMediaMentions": 0,
	})

	report := s.perform(
		CheckRequest{Type: CheckSanctions},
		CheckRequest{Type: CheckPEP},
		CheckRequest{Type: CheckAdverseMedia},
	)
	s.Equal(id.RiskLow, report.OverallRisk)
	s.Len(report.Results, 3)
	for _, r := range report.Results {
		s.True(r.Completed)
	}

	events, err := s.auditStore.ListBySubject(context.Background(), s.subject.String())
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventChecksPerformed), events[0].Action)
}

func (s *ChecksServiceSuite) TestPerform_WorstOfAggregation() {
	s.saveBundle(id.CategoryComplianceData, map[string]any{
		"sanctionsListed": true, "pepStatus": false, "adverseMediaMentions": 0,
	})

	report := s.perform(
		CheckRequest{Type: CheckSanctions},
		CheckRequest{Type: CheckPEP},
	)
	s.Equal(id.RiskHigh, report.OverallRisk)
	s.Equal(id.RiskHigh, s.resultFor(report, CheckSanctions).Risk)
	s.Equal(id.RiskLow, s.resultFor(report, CheckPEP).Risk)
}

func (s *ChecksServiceSuite) TestPerform_InsufficientConsentIsolatedPerCheck() {
	s.saveBundle(id.CategoryComplianceData, map[string]any{"sanctionsListed": false})
	s.gate.granted[id.CategoryKYCData] = false

	report := s.perform(
		CheckRequest{Type: CheckSanctions},
		CheckRequest{Type: CheckMIFIDSuitability},
	)
	sanctions := s.resultFor(report, CheckSanctions)
	s.True(sanctions.Completed, "ungated checks still run")

	mifid := s.resultFor(report, CheckMIFIDSuitability)
	s.False(mifid.Completed)
	s.Equal(id.RiskUnknown, mifid.Risk)
	s.Equal("insufficient_consent", mifid.Error)

	s.Equal(id.RiskUnknown, report.OverallRisk)
	s.Contains(report.Recommendations, "obtain consent covering kycData")
}

func (s *ChecksServiceSuite) TestPerform_MissingDataIsUnknownNotLow() {
	report := s.perform(CheckRequest{Type: CheckSanctions})
	result := s.resultFor(report, CheckSanctions)
	s.False(result.Completed)
	s.Equal(id.RiskUnknown, result.Risk)
	s.Equal(id.RiskUnknown, report.OverallRisk)
}

func (s *ChecksServiceSuite) TestPerform_AgeVerification() {
	s.saveBundle(id.CategoryBasicData, map[string]any{"dateOfBirth": "1995-05-05"})

	s.Run("of age", func() {
		report := s.perform(CheckRequest{Type: CheckAgeVerification, MinimumAge: 18})
		result := s.resultFor(report, CheckAgeVerification)
		s.True(result.Completed)
		s.Equal(id.RiskLow, result.Risk)
		s.Equal(true, result.Details["ageVerified"])
		s.NotEmpty(result.Details["proof"])
	})

	s.Run("under age", func() {
		report := s.perform(CheckRequest{Type: CheckAgeVerification, MinimumAge: 40})
		result := s.resultFor(report, CheckAgeVerification)
		s.True(result.Completed)
		s.Equal(id.RiskHigh, result.Risk)
		s.Equal(false, result.Details["ageVerified"])
	})

	s.Run("verdict never leaks birth data", func() {
		report := s.perform(CheckRequest{Type: CheckAgeVerification, MinimumAge: 18})
		result := s.resultFor(report, CheckAgeVerification)
		s.NotContains(result.Details, "dateOfBirth")
		s.NotContains(result.Details, "exactAge")
		s.NotContains(result.Details, "age")
	})
}

func (s *ChecksServiceSuite) TestPerform_MIFIDSuitability() {
	s.saveBundle(id.CategoryKYCData, map[string]any{"investmentExperience": "basic"})

	report := s.perform(CheckRequest{Type: CheckMIFIDSuitability})
	result := s.resultFor(report, CheckMIFIDSuitability)
	s.True(result.Completed)
	s.Equal(id.RiskMedium, result.Risk)
}

func (s *ChecksServiceSuite) TestPerform_ValidatesInput() {
	_, err := s.service.Perform(s.ctx(), PerformInput{Provider: s.provider,
		Checks: []CheckRequest{{Type: CheckSanctions}}})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.Perform(s.ctx(), PerformInput{Subject: s.subject, Provider: s.provider})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.Perform(s.ctx(), PerformInput{Subject: s.subject, Provider: s.provider,
		Checks: []CheckRequest{{Type: "horoscope"}}})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ChecksServiceSuite) TestPerform_CancelledContextDiscardsRun() {
	ctx, cancel := context.WithCancel(s.ctx())
	cancel()

	_, err := s.service.Perform(ctx, PerformInput{
		Subject:  s.subject,
		Provider: s.provider,
		Checks:   []CheckRequest{{Type: CheckSanctions}},
	})
	s.Error(err)
}
