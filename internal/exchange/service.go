// Package exchange implements the data exchange gateway: the single path
// through which customer data leaves a providing participant. Every release
// is gated on a presentable consent token and recorded in the audit trail
// before the response is acknowledged.
package exchange

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"datex/internal/consent"
	"datex/internal/platform/metrics"
	"datex/internal/profile"
	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
	audit "datex/pkg/platform/audit"
	"datex/pkg/platform/sentinel"
	"datex/pkg/requestcontext"
)

// ConsentResolver is the slice of the consent manager the gateway needs.
// Satisfied by consent.Service.
type ConsentResolver interface {
	Resolve(ctx context.Context, token string) (consent.Record, error)
}

// AuditPublisher is satisfied by pkg/platform/audit.Publisher. Emit failures
// abort the release: no data leaves without a persisted audit entry.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the gateway.
type Service struct {
	consents ConsentResolver
	profiles profile.Store
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

func NewService(consents ConsentResolver, profiles profile.Store, auditor AuditPublisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		consents: consents,
		profiles: profiles,
		auditor:  auditor,
		metrics:  m,
		tracer:   otel.Tracer("datex/exchange"),
		logger:   logger,
	}
}

// FetchInput identifies one release request.
type FetchInput struct {
	Subject    id.Fingerprint
	Token      string
	Categories []id.DataCategory
}

// FetchResult is the released data, keyed by category.
type FetchResult struct {
	ConsentID id.ConsentID
	Purpose   id.ConsentPurpose
	Bundles   map[id.DataCategory]profile.Bundle
}

// Fetch releases customer data under a consent token.
//
// The release is all-or-nothing: if any requested category is outside the
// grant, nothing is returned. Denials are audited with the denial reason;
// successful releases are audited before the result is handed back.
//
// Errors: CodeConsentInvalid, CodeCategoryNotGranted, CodeInsufficientConsent.
func (s *Service) Fetch(ctx context.Context, in FetchInput) (FetchResult, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.Fetch",
		trace.WithAttributes(attribute.Int("categories.requested", len(in.Categories))))
	defer span.End()

	record, err := s.consents.Resolve(ctx, in.Token)
	if err != nil {
		// An unreachable consent store is an outage, not a refusal. Only
		// business denials belong in the security trail.
		if dErrors.HasCode(err, dErrors.CodeStoreUnavailable) {
			return FetchResult{}, err
		}
		return FetchResult{}, s.deny(ctx, in.Subject, consent.Record{}, "invalid_token", err)
	}
	if record.Subject != in.Subject {
		err := dErrors.New(dErrors.CodeConsentInvalid, "consent does not reference this customer")
		return FetchResult{}, s.deny(ctx, in.Subject, record, "subject_mismatch", err)
	}
	if !record.IsUsable(requestcontext.Now(ctx)) {
		err := dErrors.New(dErrors.CodeConsentInvalid, "consent is not in granted state")
		return FetchResult{}, s.deny(ctx, in.Subject, record, "consent_"+string(record.Status), err)
	}

	requested := in.Categories
	if len(requested) == 0 {
		requested = record.Categories.Slice()
	}
	if !record.Categories.Covers(id.NewCategorySet(requested...)) {
		err := dErrors.New(dErrors.CodeCategoryNotGranted, "requested categories exceed the consent grant")
		return FetchResult{}, s.deny(ctx, in.Subject, record, "category_not_granted", err)
	}

	bundles := make(map[id.DataCategory]profile.Bundle, len(requested))
	for _, cat := range requested {
		bundle, err := s.profiles.FindBundle(ctx, record.ProvidingParticipant, in.Subject, cat)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Granted but no longer held. The grant stays valid; the
				// category is simply absent from the response.
				continue
			}
			return FetchResult{}, storeErr(err)
		}
		bundles[cat] = bundle
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:                string(audit.EventDataReleased),
		Subject:               in.Subject.String(),
		ConsentID:             record.ID.String(),
		RequestingParticipant: requestcontext.ParticipantID(ctx).String(),
		Purpose:               record.Purpose.String(),
		CategoriesReleased:    categoriesOf(bundles),
		Decision:              "released",
		RequestID:             requestcontext.RequestID(ctx),
		ClientIP:              requestcontext.ClientIP(ctx),
		UserAgent:             requestcontext.UserAgent(ctx),
	}); err != nil {
		return FetchResult{}, err
	}

	s.metrics.FetchesGranted.Inc()
	span.SetAttributes(attribute.Int("categories.released", len(bundles)))
	return FetchResult{
		ConsentID: record.ID,
		Purpose:   record.Purpose,
		Bundles:   bundles,
	}, nil
}

// deny audits the refusal and passes the original error through. If the
// audit write itself fails the store error wins, keeping the trail
// authoritative.
func (s *Service) deny(ctx context.Context, subject id.Fingerprint, record consent.Record, reason string, cause error) error {
	s.metrics.FetchesDenied.WithLabelValues(reason).Inc()

	event := audit.Event{
		Action:                string(audit.EventAccessDenied),
		Subject:               subject.String(),
		RequestingParticipant: requestcontext.ParticipantID(ctx).String(),
		Decision:              "denied",
		Reason:                reason,
		RequestID:             requestcontext.RequestID(ctx),
		ClientIP:              requestcontext.ClientIP(ctx),
		UserAgent:             requestcontext.UserAgent(ctx),
	}
	if !record.ID.IsNil() {
		event.ConsentID = record.ID.String()
		event.Purpose = record.Purpose.String()
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "denial audit write failed",
			"reason", reason, "error", err)
		return err
	}
	return cause
}

func categoriesOf(bundles map[id.DataCategory]profile.Bundle) []string {
	out := make([]string, 0, len(bundles))
	for cat := range bundles {
		out = append(out, string(cat))
	}
	return out
}

func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unavailable", err)
	}
	return dErrors.Wrap(dErrors.CodeInternal, "profile store failure", err)
}
