package participant

import (
	"context"
	"sync"

	id "datex/pkg/domain"
	"datex/pkg/platform/sentinel"
)

// InMemoryStore keeps participants in a map. Save overwrites, matching the
// upsert semantics of the Postgres store.
type InMemoryStore struct {
	mu           sync.RWMutex
	participants map[id.ParticipantID]Participant
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{participants: make(map[id.ParticipantID]Participant)}
}

func (s *InMemoryStore) Save(_ context.Context, p Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.ID] = p
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, pid id.ParticipantID) (Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[pid]
	if !ok {
		return Participant{}, sentinel.ErrNotFound
	}
	return p, nil
}

func (s *InMemoryStore) ListByIndustry(_ context.Context, industry string, status Status) ([]Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Participant
	for _, p := range s.participants {
		if p.Industry == industry && p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}
