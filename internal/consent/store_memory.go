package consent

import (
	"context"
	"sync"
	"time"

	id "datex/pkg/domain"
	"datex/pkg/platform/sentinel"
)

// InMemoryStore keeps consent records under a single RWMutex, which makes
// per-id operations trivially linearizable.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.ConsentID]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.ConsentID]Record)}
}

func (s *InMemoryStore) Create(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	s.records[record.ID] = record
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, cid id.ConsentID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[cid]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	return r, nil
}

// UpdateStatus transitions granted records only; transitions requested on
// records already in a terminal state succeed without changing them. The
// expiry re-check happens under the write lock.
func (s *InMemoryStore) UpdateStatus(_ context.Context, cid id.ConsentID, to Status, actor string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[cid]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Status != StatusGranted {
		return nil
	}
	// A granted record past its expiry is logically expired; a revoke
	// arriving now must not resurrect or overwrite that.
	if to == StatusRevoked && !at.Before(r.ExpiresAt) {
		r.Status = StatusExpired
		s.records[cid] = r
		return nil
	}
	r.Status = to
	if to == StatusRevoked {
		revokedAt := at
		r.RevokedAt = &revokedAt
		r.RevokedBy = actor
	}
	s.records[cid] = r
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject id.Fingerprint, requesting id.ParticipantID, status Status) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.Subject != subject {
			continue
		}
		if !requesting.IsNil() && r.RequestingParticipant != requesting {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
