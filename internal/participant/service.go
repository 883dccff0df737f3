package participant

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

// AuditPublisher is satisfied by pkg/platform/audit.Publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the trust registry: it resolves institution identifiers to trust
// and capability metadata and gates every consent and exchange operation on
// participant status.
type Service struct {
	store   Store
	auditor AuditPublisher
	logger  *slog.Logger
}

func NewService(store Store, auditor AuditPublisher, logger *slog.Logger) *Service {
	return &Service{store: store, auditor: auditor, logger: logger}
}

// RegisterInput describes a new institution.
type RegisterInput struct {
	Name         string
	Industry     string
	TrustLevel   TrustLevel
	Capabilities []Capability
	NotBefore    time.Time
	NotAfter     time.Time
}

// Register creates a participant in active status and returns the record plus
// the plaintext API key. The key is not recoverable afterwards.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Participant, string, error) {
	if in.Name == "" {
		return Participant{}, "", dErrors.New(dErrors.CodeInvalidInput, "participant name is required")
	}
	switch in.TrustLevel {
	case TrustSovereign, TrustRegulatory, TrustInstitutional, TrustGovernmental:
	default:
		return Participant{}, "", dErrors.New(dErrors.CodeInvalidInput, "invalid trust level")
	}

	secret, err := GenerateSecret()
	if err != nil {
		return Participant{}, "", dErrors.Wrap(dErrors.CodeInternal, "could not generate credentials", err)
	}
	hash, err := HashSecret(secret)
	if err != nil {
		return Participant{}, "", err
	}

	now := requestcontext.Now(ctx)
	p := Participant{
		ID:           id.NewParticipantID(),
		Name:         in.Name,
		Industry:     in.Industry,
		TrustLevel:   in.TrustLevel,
		Status:       StatusActive,
		Capabilities: in.Capabilities,
		NotBefore:    in.NotBefore,
		NotAfter:     in.NotAfter,
		SecretHash:   hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Save(ctx, p); err != nil {
		return Participant{}, "", storeErr(err)
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:  string(audit.EventParticipantRegistered),
		ActorID: p.ID.String(),
		Reason:  string(in.TrustLevel),
	}); err != nil {
		return Participant{}, "", err
	}
	return p, secret, nil
}

// Resolve returns the participant regardless of status.
func (s *Service) Resolve(ctx context.Context, pid id.ParticipantID) (Participant, error) {
	p, err := s.store.FindByID(ctx, pid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Participant{}, dErrors.New(dErrors.CodeUnknownParticipant, "participant not registered: "+pid.String())
		}
		return Participant{}, storeErr(err)
	}
	return p, nil
}

// RequireActive resolves the participant and enforces that it may act now.
// Errors: CodeUnknownParticipant for missing, suspended, revoked, or
// out-of-validity-window participants.
func (s *Service) RequireActive(ctx context.Context, pid id.ParticipantID) (Participant, error) {
	p, err := s.Resolve(ctx, pid)
	if err != nil {
		return Participant{}, err
	}
	if !p.IsActive(requestcontext.Now(ctx)) {
		return Participant{}, dErrors.New(dErrors.CodeUnknownParticipant, "participant not active: "+pid.String())
	}
	return p, nil
}

// ListByIndustry returns participants of one industry in the given status,
// for directory listings.
func (s *Service) ListByIndustry(ctx context.Context, industry string, status Status) ([]Participant, error) {
	if industry == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "industry is required")
	}
	if status == "" {
		status = StatusActive
	}
	out, err := s.store.ListByIndustry(ctx, industry, status)
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// Suspend moves an active participant to suspended.
func (s *Service) Suspend(ctx context.Context, pid id.ParticipantID, reason string) error {
	return s.transition(ctx, pid, StatusSuspended, audit.EventParticipantSuspended, reason)
}

// Reactivate moves a suspended participant back to active. Revoked is
// terminal.
func (s *Service) Reactivate(ctx context.Context, pid id.ParticipantID) error {
	p, err := s.Resolve(ctx, pid)
	if err != nil {
		return err
	}
	if p.Status == StatusRevoked {
		return dErrors.New(dErrors.CodeInvalidInput, "revoked participants cannot be reactivated")
	}
	return s.transition(ctx, pid, StatusActive, audit.EventParticipantReactivated, "")
}

// Revoke permanently removes a participant from the trust network. The record
// is kept; the status transition supersedes it.
func (s *Service) Revoke(ctx context.Context, pid id.ParticipantID, reason string) error {
	return s.transition(ctx, pid, StatusRevoked, audit.EventParticipantRevoked, reason)
}

func (s *Service) transition(ctx context.Context, pid id.ParticipantID, to Status, action audit.AuditEvent, reason string) error {
	p, err := s.Resolve(ctx, pid)
	if err != nil {
		return err
	}
	p.Status = to
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Save(ctx, p); err != nil {
		return storeErr(err)
	}
	return s.auditor.Emit(ctx, audit.Event{
		Action:  string(action),
		ActorID: pid.String(),
		Reason:  reason,
	})
}

// RotateSecret replaces the participant's API key and returns the new
// plaintext key.
func (s *Service) RotateSecret(ctx context.Context, pid id.ParticipantID) (string, error) {
	p, err := s.Resolve(ctx, pid)
	if err != nil {
		return "", err
	}
	secret, err := GenerateSecret()
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "could not generate credentials", err)
	}
	hash, err := HashSecret(secret)
	if err != nil {
		return "", err
	}
	p.SecretHash = hash
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Save(ctx, p); err != nil {
		return "", storeErr(err)
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		Action:  string(audit.EventSecretRotated),
		ActorID: pid.String(),
	}); err != nil {
		return "", err
	}
	return secret, nil
}

// Authenticate verifies the API key for middleware.RequireParticipant.
// All failure modes collapse into CodeUnauthorized so responses do not leak
// whether a participant id exists.
func (s *Service) Authenticate(ctx context.Context, participantID, apiKey string) (id.ParticipantID, error) {
	pid, err := id.ParseParticipantID(participantID)
	if err != nil {
		return id.ParticipantID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid participant id")
	}
	p, err := s.RequireActive(ctx, pid)
	if err != nil {
		return id.ParticipantID{}, dErrors.New(dErrors.CodeUnauthorized, "unknown or inactive participant")
	}
	if !VerifySecret(apiKey, p.SecretHash) {
		return id.ParticipantID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return p.ID, nil
}

// storeErr maps infrastructure failures (timeouts, connection loss) to the
// retryable store_unavailable class.
func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(dErrors.CodeStoreUnavailable, "participant store unavailable", err)
	}
	return dErrors.Wrap(dErrors.CodeInternal, "participant store failure", err)
}
