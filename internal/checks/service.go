// Package checks orchestrates compliance screenings over provider-held
// customer data. Checks run in parallel, each gated on its own consent
// category; results fold into a worst-of overall risk verdict.
package checks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"datex/internal/profile"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
	audit "datex/pkg/platform/audit"
	"datex/pkg/platform/sentinel"
	"datex/pkg/requestcontext"
)

// ConsentGate is the slice of the consent manager the orchestrator needs:
// per-category usable-grant checks. Satisfied by consent.Service.
type ConsentGate interface {
	HasUsableConsent(ctx context.Context, subject id.Fingerprint, requesting id.ParticipantID, category id.DataCategory) (bool, error)
}

// AuditPublisher is satisfied by pkg/platform/audit.Publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service fans requested checks out over registered checkers.
type Service struct {
	checkers map[CheckType]Checker
	consents ConsentGate
	auditor  AuditPublisher
	tracer   trace.Tracer
	logger   *slog.Logger
}

func NewService(checkers map[CheckType]Checker, consents ConsentGate, auditor AuditPublisher, logger *slog.Logger) *Service {
	return &Service{
		checkers: checkers,
		consents: consents,
		auditor:  auditor,
		tracer:   otel.Tracer("datex/checks"),
		logger:   logger,
	}
}

// DefaultCheckers wires every built-in checker against the given profile
// source.
func DefaultCheckers(profiles profile.Store) map[CheckType]Checker {
	return map[CheckType]Checker{
		CheckSanctions:        NewSanctionsChecker(profiles),
		CheckPEP:              NewPEPChecker(profiles),
		CheckAdverseMedia:     NewAdverseMediaChecker(profiles),
		CheckAgeVerification:  NewAgeChecker(profiles),
		CheckMIFIDSuitability: NewMIFIDChecker(profiles),
	}
}

// PerformInput identifies one orchestration run. Provider is the participant
// whose held data backs the screenings.
type PerformInput struct {
	Subject  id.Fingerprint
	Provider id.ParticipantID
	Checks   []CheckRequest
}

// Perform runs the requested checks concurrently and aggregates the verdict.
//
// Consent failures are isolated per check: a check without a usable grant
// reports insufficient_consent with risk unknown while the others still run.
// If the context is cancelled mid-run, the whole run is discarded rather than
// returning a partial report.
func (s *Service) Perform(ctx context.Context, in PerformInput) (Report, error) {
	if in.Subject.IsNil() {
		return Report{}, dErrors.New(dErrors.CodeInvalidInput, "subject fingerprint is required")
	}
	if len(in.Checks) == 0 {
		return Report{}, dErrors.New(dErrors.CodeInvalidInput, "at least one check is required")
	}
	for _, c := range in.Checks {
		if !c.Type.IsValid() {
			return Report{}, dErrors.New(dErrors.CodeInvalidInput, "unknown check type: "+string(c.Type))
		}
		if _, ok := s.checkers[c.Type]; !ok {
			return Report{}, dErrors.New(dErrors.CodeInvalidInput, "check not available: "+string(c.Type))
		}
	}

	ctx, span := s.tracer.Start(ctx, "checks.Perform",
		trace.WithAttributes(attribute.Int("checks.requested", len(in.Checks))))
	defer span.End()

	now := requestcontext.Now(ctx)
	requesting := requestcontext.ParticipantID(ctx)
	started := time.Now()

	results := make([]CheckResult, len(in.Checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range in.Checks {
		g.Go(func() error {
			results[i] = s.runOne(gctx, in, req, requesting, now)
			return nil
		})
	}
	// Goroutines only write their own slot, so the only errgroup failure
	// mode left is context cancellation.
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, dErrors.Wrap(dErrors.CodeInternal, "check run aborted", err)
	}

	levels := make([]id.RiskLevel, len(results))
	for i, r := range results {
		levels[i] = r.Risk
	}
	overall := id.AggregateRisk(levels)

	report := Report{
		Subject:         in.Subject,
		OverallRisk:     overall,
		Results:         results,
		Recommendations: recommend(overall, results),
		Duration:        time.Since(started),
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:                string(audit.EventChecksPerformed),
		Subject:               in.Subject.String(),
		RequestingParticipant: requesting.String(),
		Decision:              string(overall),
		CategoriesReleased:    checkNames(in.Checks),
		RequestID:             requestcontext.RequestID(ctx),
	}); err != nil {
		return Report{}, err
	}
	span.SetAttributes(attribute.String("checks.overall_risk", string(overall)))
	return report, nil
}

// runOne gates and executes a single check. It never returns an error;
// failures become unknown-risk results so one bad check cannot sink the run.
func (s *Service) runOne(ctx context.Context, in PerformInput, req CheckRequest, requesting id.ParticipantID, now time.Time) CheckResult {
	category := requiredCategory[req.Type]
	ok, err := s.consents.HasUsableConsent(ctx, in.Subject, requesting, category)
	if err != nil {
		s.logger.WarnContext(ctx, "consent gate lookup failed",
			"check", string(req.Type), "error", err)
		return incomplete(req.Type, "consent verification unavailable")
	}
	if !ok {
		r := incomplete(req.Type, "insufficient_consent")
		r.Findings = []string{"no usable consent covering " + string(category)}
		return r
	}

	result, err := s.checkers[req.Type].Run(ctx, in.Provider, in.Subject, req, now)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sentinel.ErrUnavailable) {
			return incomplete(req.Type, "data source unavailable")
		}
		s.logger.ErrorContext(ctx, "check execution failed",
			"check", string(req.Type), "error", err)
		return incomplete(req.Type, "check execution failed")
	}
	return result
}

func recommend(overall id.RiskLevel, results []CheckResult) []string {
	var recs []string
	switch overall {
	case id.RiskHigh:
		recs = append(recs, "manual review required before onboarding", "apply enhanced due diligence")
	case id.RiskUnknown:
		recs = append(recs, "repeat incomplete checks before relying on this verdict")
	case id.RiskMedium:
		recs = append(recs, "apply standard due diligence")
	default:
		recs = append(recs, "no elevated risk indicators found")
	}
	for _, r := range results {
		if !r.Completed && r.Error == "insufficient_consent" {
			recs = append(recs, "obtain consent covering "+string(requiredCategory[r.Type]))
		}
	}
	return recs
}

func checkNames(checks []CheckRequest) []string {
	out := make([]string, len(checks))
	for i, c := range checks {
		out[i] = string(c.Type)
	}
	return out
}
