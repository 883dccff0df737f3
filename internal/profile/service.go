package profile

import (
	"context"
	"log/slog"

	id "datex/pkg/domain"
	dErrors "datex/pkg/domain-errors"
	"datex/pkg/requestcontext"
)

// Service accepts provider-pushed profile bundles. The authenticated caller
// is always the providing participant; a provider can only ever attest its
// own holdings.
type Service struct {
	store      Store
	vocabulary id.Vocabulary
	logger     *slog.Logger
}

func NewService(store Store, vocabulary id.Vocabulary, logger *slog.Logger) *Service {
	return &Service{store: store, vocabulary: vocabulary, logger: logger}
}

// PushInput is one category slice of a customer profile as submitted by the
// provider.
type PushInput struct {
	Subject      id.Fingerprint
	Category     id.DataCategory
	Data         map[string]any
	Completeness float64
}

// Push validates and stores a bundle. Stored bundles attest the provider's
// held categories, which consent creation checks grants against.
//
// Errors: CodeInvalidInput, CodeInvalidCategorySet, CodeUnauthorized.
func (s *Service) Push(ctx context.Context, in PushInput) error {
	provider := requestcontext.ParticipantID(ctx)
	if provider.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "no authenticated participant")
	}
	if in.Subject.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "subject fingerprint is required")
	}
	if !s.vocabulary.Contains(in.Category) {
		return dErrors.New(dErrors.CodeInvalidCategorySet, "unknown data category: "+string(in.Category))
	}
	if len(in.Data) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "bundle data is required")
	}
	if in.Completeness < 0 || in.Completeness > 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "completeness must be between 0 and 1")
	}

	bundle := Bundle{
		Category:     in.Category,
		Data:         in.Data,
		Completeness: in.Completeness,
		UpdatedAt:    requestcontext.Now(ctx),
	}
	if err := s.store.SaveBundle(ctx, provider, in.Subject, bundle); err != nil {
		return dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unavailable", err)
	}

	s.logger.InfoContext(ctx, "profile bundle stored",
		"provider", provider.String(),
		"category", string(in.Category))
	return nil
}

// Held lists the categories the provider currently holds for a subject.
func (s *Service) Held(ctx context.Context, subject id.Fingerprint) (id.CategorySet, error) {
	provider := requestcontext.ParticipantID(ctx)
	if provider.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated participant")
	}
	held, err := s.store.HeldCategories(ctx, provider, subject)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unavailable", err)
	}
	return held, nil
}
