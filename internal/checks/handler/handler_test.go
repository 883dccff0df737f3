package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"datex/internal/checks"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
	"datex/pkg/testutil"
)

type fakeChecksService struct {
	report checks.Report
	err    error
	gotIn  checks.PerformInput
}

func (f *fakeChecksService) Perform(_ context.Context, in checks.PerformInput) (checks.Report, error) {
	f.gotIn = in
	return f.report, f.err
}

type ChecksHandlerSuite struct {
	suite.Suite
	subject  id.Fingerprint
	provider id.ParticipantID
}

func TestChecksHandlerSuite(t *testing.T) {
	suite.Run(t, new(ChecksHandlerSuite))
}

func (s *ChecksHandlerSuite) SetupSuite() {
	fp, err := id.ComputeFingerprint(id.IdentityInput{
		LastName:      "Keller",
		GivenName:     "Rosa",
		DateOfBirth:   time.Date(1985, 11, 3, 0, 0, 0, 0, time.UTC),
		Nationalities: []string{"AT"},
	}, []byte("pepper"))
	s.Require().NoError(err)
	s.subject = fp
	s.provider = id.NewParticipantID()
}

func (s *ChecksHandlerSuite) newRouter(svc *fakeChecksService) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func (s *ChecksHandlerSuite) TestHandlePerform() {
	svc := &fakeChecksService{report: checks.Report{
		Subject:     s.subject,
		OverallRisk: id.RiskLow,
		Results: []checks.CheckResult{
			{Type: checks.CheckSanctions, Completed: true, Risk: id.RiskLow},
		},
		Recommendations: []string{"no elevated risk identified"},
		Duration:        1250 * time.Millisecond,
	}}
	router := s.newRouter(svc)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/checks/perform", map[string]any{
		"sharedCustomerHash":   s.subject.String(),
		"providingInstitution": s.provider.String(),
		"checks":               []map[string]any{{"type": "sanctions"}},
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[performResponse](s.T(), rr)
	s.True(resp.Success)
	s.Equal("low", resp.OverallRisk)
	s.Equal(int64(1250), resp.Duration)
	s.Len(resp.Results, 1)
	s.Equal(s.subject, svc.gotIn.Subject)
	s.Equal(s.provider, svc.gotIn.Provider)

	// Wire name per the public contract.
	testutil.AssertJSONContains(s.T(), rr, "duration", float64(1250))
}

func (s *ChecksHandlerSuite) TestHandlePerform_IncompleteCheckClearsSuccess() {
	svc := &fakeChecksService{report: checks.Report{
		Subject:     s.subject,
		OverallRisk: id.RiskUnknown,
		Results: []checks.CheckResult{
			{Type: checks.CheckPEP, Completed: false, Risk: id.RiskUnknown, Error: "insufficient_consent"},
		},
	}}
	router := s.newRouter(svc)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/checks/perform", map[string]any{
		"sharedCustomerHash":   s.subject.String(),
		"providingInstitution": s.provider.String(),
		"checks":               []map[string]any{{"type": "pep"}},
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[performResponse](s.T(), rr)
	s.False(resp.Success)
	s.Equal("unknown", resp.OverallRisk)
}

func (s *ChecksHandlerSuite) TestHandlePerform_BadSubject() {
	router := s.newRouter(&fakeChecksService{})

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/checks/perform", map[string]any{
		"sharedCustomerHash":   "not-a-fingerprint",
		"providingInstitution": s.provider.String(),
		"checks":               []map[string]any{{"type": "sanctions"}},
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *ChecksHandlerSuite) TestHandlePerform_ServiceError() {
	svc := &fakeChecksService{err: dErrors.New(dErrors.CodeInvalidInput, "unknown check type: astrology")}
	router := s.newRouter(svc)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/checks/perform", map[string]any{
		"sharedCustomerHash":   s.subject.String(),
		"providingInstitution": s.provider.String(),
		"checks":               []map[string]any{{"type": "astrology"}},
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertErrorCode(s.T(), rr, string(dErrors.CodeInvalidInput))
}
