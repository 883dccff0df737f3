package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
	audit "datex/pkg/platform/audit"
	"datex/pkg/platform/sentinel"
	"datex/pkg/requestcontext"
)

// ConsentLookup is the slice of the consent manager the matcher needs:
// whether any usable grant references the subject. Satisfied by
// consent.Service.
type ConsentLookup interface {
	HasAnyActiveConsent(ctx context.Context, subject id.Fingerprint) (bool, error)
}

// AuditPublisher is satisfied by pkg/platform/audit.Publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service implements customer match and recognition: fingerprint computation
// plus a read-only known-subject lookup. Match never creates or mutates
// consent state.
type Service struct {
	store    Store
	consents ConsentLookup
	pepper   []byte
	auditor  AuditPublisher
	logger   *slog.Logger
}

func NewService(store Store, consents ConsentLookup, pepper []byte, auditor AuditPublisher, logger *slog.Logger) *Service {
	return &Service{store: store, consents: consents, pepper: pepper, auditor: auditor, logger: logger}
}

// Fingerprint derives the one-way join key for an identity tuple.
// Errors: CodeInvalidIdentityInput when any field is missing.
func (s *Service) Fingerprint(in id.IdentityInput) (id.Fingerprint, error) {
	return id.ComputeFingerprint(in, s.pepper)
}

// Match computes the fingerprint and reports whether the subject is already
// known: holds a valid identification record or any active consent. When
// matched, assurance fields come from the most recent valid identification.
func (s *Service) Match(ctx context.Context, in id.IdentityInput) (MatchResult, error) {
	fp, err := s.Fingerprint(in)
	if err != nil {
		return MatchResult{}, err
	}

	result := MatchResult{Fingerprint: fp}
	now := requestcontext.Now(ctx)

	record, err := s.store.FindLatestValid(ctx, fp, now)
	switch {
	case err == nil:
		result.Matched = true
		result.Assurance = record.Assurance
		result.IdentifiedAt = record.IdentifiedAt
		result.ValidUntil = record.ValidUntil
	case errors.Is(err, sentinel.ErrNotFound):
		known, cerr := s.consents.HasAnyActiveConsent(ctx, fp)
		if cerr != nil {
			return MatchResult{}, cerr
		}
		result.Matched = known
	default:
		return MatchResult{}, storeErr(err)
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:                string(audit.EventCustomerMatched),
		Subject:               fp.String(),
		RequestingParticipant: requestcontext.ParticipantID(ctx).String(),
		Decision:              decision(result.Matched),
		RequestID:             requestcontext.RequestID(ctx),
	}); err != nil {
		return MatchResult{}, err
	}
	return result, nil
}

// RecordInput registers a completed identity verification so later Match
// calls can carry the assurance forward.
type RecordInput struct {
	Identity     id.IdentityInput
	Assurance    LevelOfAssurance
	IdentifiedBy id.ParticipantID
	ValidFor     time.Duration
}

// Record persists an identification for the tuple's fingerprint and returns
// the fingerprint.
func (s *Service) Record(ctx context.Context, in RecordInput) (id.Fingerprint, error) {
	fp, err := s.Fingerprint(in.Identity)
	if err != nil {
		return "", err
	}
	switch in.Assurance {
	case AssuranceLow, AssuranceSubstantial, AssuranceHigh:
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid level of assurance")
	}
	if in.ValidFor <= 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "validity duration must be positive")
	}
	now := requestcontext.Now(ctx)
	record := IdentificationRecord{
		Subject:      fp,
		Assurance:    in.Assurance,
		IdentifiedBy: in.IdentifiedBy,
		IdentifiedAt: now,
		ValidUntil:   now.Add(in.ValidFor),
	}
	if err := s.store.Save(ctx, record); err != nil {
		return "", storeErr(err)
	}
	return fp, nil
}

func decision(matched bool) string {
	if matched {
		return "match"
	}
	return "no_match"
}

func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(dErrors.CodeStoreUnavailable, "identity store unavailable", err)
	}
	return dErrors.Wrap(dErrors.CodeInternal, "identity store failure", err)
}
