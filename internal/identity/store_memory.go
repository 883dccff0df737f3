package identity

import (
	"context"
	"sync"
	"time"

	id "datex/pkg/domain"
	"datex/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.Fingerprint][]IdentificationRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.Fingerprint][]IdentificationRecord)}
}

func (s *InMemoryStore) Save(_ context.Context, record IdentificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Subject] = append(s.records[record.Subject], record)
	return nil
}

func (s *InMemoryStore) FindLatestValid(_ context.Context, subject id.Fingerprint, now time.Time) (IdentificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  IdentificationRecord
		found bool
	)
	for _, r := range s.records[subject] {
		if !r.IsValid(now) {
			continue
		}
		if !found || r.IdentifiedAt.After(best.IdentifiedAt) {
			best = r
			found = true
		}
	}
	if !found {
		return IdentificationRecord{}, sentinel.ErrNotFound
	}
	return best, nil
}
