package profile

import (
	"context"
	"sync"

	id "datex/pkg/domain"
	"datex/pkg/platform/sentinel"
)

type bundleKey struct {
	provider id.ParticipantID
	subject  id.Fingerprint
	category id.DataCategory
}

// InMemoryStore holds profile bundles in a map. Development and test backend.
type InMemoryStore struct {
	mu      sync.RWMutex
	bundles map[bundleKey]Bundle
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bundles: make(map[bundleKey]Bundle)}
}

func (s *InMemoryStore) FindBundle(_ context.Context, provider id.ParticipantID, subject id.Fingerprint, category id.DataCategory) (Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bundles[bundleKey{provider, subject, category}]
	if !ok {
		return Bundle{}, sentinel.ErrNotFound
	}
	return b, nil
}

func (s *InMemoryStore) HeldCategories(_ context.Context, provider id.ParticipantID, subject id.Fingerprint) (id.CategorySet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := id.CategorySet{}
	for k := range s.bundles {
		if k.provider == provider && k.subject == subject {
			held[k.category] = true
		}
	}
	return held, nil
}

func (s *InMemoryStore) SaveBundle(_ context.Context, provider id.ParticipantID, subject id.Fingerprint, bundle Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[bundleKey{provider, subject, bundle.Category}] = bundle
	return nil
}
