package consent

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

// ParticipantRegistry is the slice of the trust registry the lifecycle
// manager needs: existence and active-status checks for both sides of a
// grant.
type ParticipantRegistry interface {
	RequireActive(ctx context.Context, pid id.ParticipantID) (RegisteredParticipant, error)
}

// RegisteredParticipant carries the registry facts consent creation validates
// against.
type RegisteredParticipant struct {
	ID           id.ParticipantID
	Name         string
	CanExchange  bool
	CanVerifyKYC bool
}

// AuditPublisher is satisfied by pkg/platform/audit.Publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ProfileAttestation reports which data categories a providing participant
// holds for a subject. Consent creation enforces the invariant that a grant's
// category set is a subset of what the provider is attested to hold.
type ProfileAttestation interface {
	HeldCategories(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint) (id.CategorySet, error)
}

// Service is the consent lifecycle manager. It creates, validates, and
// expires grants; expiry is evaluated lazily on read rather than by a
// background sweep, so status is always correct at read time without extra
// concurrency machinery.
type Service struct {
	store        Store
	registry     ParticipantRegistry
	attestations ProfileAttestation
	tokens       *TokenIssuer
	vocabulary   id.Vocabulary
	auditor      AuditPublisher
	logger       *slog.Logger
}

func NewService(store Store, registry ParticipantRegistry, attestations ProfileAttestation, tokens *TokenIssuer, vocabulary id.Vocabulary, auditor AuditPublisher, logger *slog.Logger) *Service {
	return &Service{
		store:        store,
		registry:     registry,
		attestations: attestations,
		tokens:       tokens,
		vocabulary:   vocabulary,
		auditor:      auditor,
		logger:       logger,
	}
}

// CreateInput carries everything needed to establish a grant.
type CreateInput struct {
	Subject               id.Fingerprint
	RequestingParticipant id.ParticipantID
	ProvidingParticipant  id.ParticipantID
	Purpose               id.ConsentPurpose
	Categories            []id.DataCategory
	TTL                   time.Duration
}

// CreateResult returns the new grant plus its presentable token.
type CreateResult struct {
	Record Record
	Token  string
}

// Create validates participants, categories, and TTL policy, then persists a
// new record directly in granted state (immediate-grant baseline; no approval
// step is modeled). Two identical calls produce two independent grants; there
// is no deduplication.
//
// Errors: CodeUnknownParticipant, CodeInvalidCategorySet, CodeTTLExceedsPolicy.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	if in.Subject.IsNil() {
		return CreateResult{}, dErrors.New(dErrors.CodeInvalidInput, "subject fingerprint is required")
	}
	if !in.Purpose.IsValid() {
		return CreateResult{}, dErrors.New(dErrors.CodeInvalidInput, "invalid purpose: "+in.Purpose.String())
	}
	if _, err := s.registry.RequireActive(ctx, in.RequestingParticipant); err != nil {
		return CreateResult{}, err
	}
	if _, err := s.registry.RequireActive(ctx, in.ProvidingParticipant); err != nil {
		return CreateResult{}, err
	}
	if err := s.vocabulary.ValidateSet(in.Categories); err != nil {
		return CreateResult{}, err
	}
	held, err := s.attestations.HeldCategories(ctx, in.ProvidingParticipant, in.Subject)
	if err != nil {
		return CreateResult{}, storeErr(err)
	}
	if !held.Covers(id.NewCategorySet(in.Categories...)) {
		return CreateResult{}, dErrors.New(dErrors.CodeInvalidCategorySet,
			"providing participant does not hold all requested categories for this subject")
	}
	if in.TTL <= 0 {
		return CreateResult{}, dErrors.New(dErrors.CodeTTLExceedsPolicy, "ttl must be positive")
	}
	if max := in.Purpose.MaxTTL(); in.TTL > max {
		return CreateResult{}, dErrors.New(dErrors.CodeTTLExceedsPolicy,
			"ttl exceeds policy maximum for purpose "+in.Purpose.String())
	}

	now := requestcontext.Now(ctx)
	record := Record{
		ID:                    id.NewConsentID(),
		Subject:               in.Subject,
		RequestingParticipant: in.RequestingParticipant,
		ProvidingParticipant:  in.ProvidingParticipant,
		Purpose:               in.Purpose,
		Categories:            id.NewCategorySet(in.Categories...),
		Status:                StatusGranted,
		CreatedAt:             now,
		ExpiresAt:             now.Add(in.TTL),
	}
	if err := s.store.Create(ctx, record); err != nil {
		return CreateResult{}, storeErr(err)
	}

	token, err := s.tokens.Issue(record)
	if err != nil {
		return CreateResult{}, err
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:                string(audit.EventConsentGranted),
		Subject:               record.Subject.String(),
		ConsentID:             record.ID.String(),
		RequestingParticipant: record.RequestingParticipant.String(),
		Purpose:               record.Purpose.String(),
		CategoriesReleased:    record.Categories.Strings(),
		RequestID:             requestcontext.RequestID(ctx),
	}); err != nil {
		return CreateResult{}, err
	}

	return CreateResult{Record: record, Token: token}, nil
}

// Status returns the current status of a consent, recomputing the expired
// transition lazily: if the stored status is granted but expiry has passed,
// the store is updated before returning so repeated reads stay consistent.
//
// Errors: CodeConsentNotFound.
func (s *Service) Status(ctx context.Context, cid id.ConsentID) (Status, error) {
	record, err := s.Get(ctx, cid)
	if err != nil {
		return "", err
	}
	return record.Status, nil
}

// Get returns the full record with lazy expiry applied.
func (s *Service) Get(ctx context.Context, cid id.ConsentID) (Record, error) {
	record, err := s.store.FindByID(ctx, cid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Record{}, dErrors.New(dErrors.CodeConsentNotFound, "consent not found: "+cid.String())
		}
		return Record{}, storeErr(err)
	}

	now := requestcontext.Now(ctx)
	effective := record.EffectiveStatus(now)
	if effective == StatusExpired && record.Status == StatusGranted {
		if err := s.store.UpdateStatus(ctx, cid, StatusExpired, "", now); err != nil {
			// The read is still correct; the write-back retries on the next
			// read.
			s.logger.WarnContext(ctx, "lazy expiry write-back failed",
				"consent_id", cid.String(), "error", err)
		}
		record.Status = StatusExpired
	}
	return record, nil
}

// Revoke is idempotent: revoking an already-revoked or already-expired
// consent succeeds without changing prior state. A granted consent moves to
// revoked with actor and timestamp recorded for audit.
func (s *Service) Revoke(ctx context.Context, cid id.ConsentID, actor string) error {
	record, err := s.Get(ctx, cid)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	if record.Status == StatusGranted {
		if err := s.store.UpdateStatus(ctx, cid, StatusRevoked, actor, now); err != nil {
			return storeErr(err)
		}
	}
	return s.auditor.Emit(ctx, audit.Event{
		Action:                string(audit.EventConsentRevoked),
		Subject:               record.Subject.String(),
		ConsentID:             cid.String(),
		RequestingParticipant: record.RequestingParticipant.String(),
		ActorID:               actor,
		RequestID:             requestcontext.RequestID(ctx),
	})
}

// Resolve verifies a consent token and loads the referenced record with lazy
// expiry applied. Used by the exchange gateway.
//
// Errors: CodeConsentInvalid for bad tokens or missing records.
func (s *Service) Resolve(ctx context.Context, token string) (Record, error) {
	cid, subject, err := s.tokens.Verify(token)
	if err != nil {
		return Record{}, err
	}
	record, err := s.Get(ctx, cid)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConsentNotFound) {
			return Record{}, dErrors.New(dErrors.CodeConsentInvalid, "consent no longer exists")
		}
		return Record{}, err
	}
	if record.Subject != subject {
		return Record{}, dErrors.New(dErrors.CodeConsentInvalid, "consent token subject mismatch")
	}
	return record, nil
}

// HasUsableConsent reports whether the subject holds any currently usable
// grant from the requesting participant covering the given category. Used by
// the checks orchestrator for per-check consent gating.
func (s *Service) HasUsableConsent(ctx context.Context, subject id.Fingerprint, requesting id.ParticipantID, category id.DataCategory) (bool, error) {
	records, err := s.store.ListBySubject(ctx, subject, requesting, StatusGranted)
	if err != nil {
		return false, storeErr(err)
	}
	now := requestcontext.Now(ctx)
	for _, r := range records {
		if r.IsUsable(now) && r.Categories.Contains(category) {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyActiveConsent reports whether any non-expired, non-revoked grant
// exists for the subject. Used by customer match to decide "known to the
// system".
func (s *Service) HasAnyActiveConsent(ctx context.Context, subject id.Fingerprint) (bool, error) {
	records, err := s.store.ListBySubject(ctx, subject, id.ParticipantID{}, StatusGranted)
	if err != nil {
		return false, storeErr(err)
	}
	now := requestcontext.Now(ctx)
	for _, r := range records {
		if r.IsUsable(now) {
			return true, nil
		}
	}
	return false, nil
}

func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(dErrors.CodeStoreUnavailable, "consent store unavailable", err)
	}
	return dErrors.Wrap(dErrors.CodeInternal, "consent store failure", err)
}
