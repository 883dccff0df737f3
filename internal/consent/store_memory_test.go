package consent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "datex/pkg/domain"
	"datex/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) record() Record {
	return Record{
		ID:                    id.NewConsentID(),
		Subject:               "00000000000000000000000000000000000000000000000000000000000000aa",
		RequestingParticipant: id.NewParticipantID(),
		ProvidingParticipant:  id.NewParticipantID(),
		Purpose:               id.PurposeAccountOpening,
		Categories:            id.NewCategorySet(id.CategoryBasicData),
		Status:                StatusGranted,
		CreatedAt:             s.now,
		ExpiresAt:             s.now.Add(time.Hour),
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	r := s.record()
	s.Require().NoError(s.store.Create(ctx, r))

	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r, got)

	s.ErrorIs(s.store.Create(ctx, r), sentinel.ErrConflict)

	_, err = s.store.FindByID(ctx, id.NewConsentID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdateStatus() {
	ctx := context.Background()

	s.Run("revoke before expiry records actor and time", func() {
		r := s.record()
		s.Require().NoError(s.store.Create(ctx, r))

		at := s.now.Add(10 * time.Minute)
		s.Require().NoError(s.store.UpdateStatus(ctx, r.ID, StatusRevoked, "customer", at))

		got, err := s.store.FindByID(ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(StatusRevoked, got.Status)
		s.Equal("customer", got.RevokedBy)
		s.Require().NotNil(got.RevokedAt)
		s.Equal(at, *got.RevokedAt)
	})

	s.Run("revoke past expiry records expired instead", func() {
		r := s.record()
		s.Require().NoError(s.store.Create(ctx, r))

		s.Require().NoError(s.store.UpdateStatus(ctx, r.ID, StatusRevoked, "customer", s.now.Add(2*time.Hour)))

		got, err := s.store.FindByID(ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(StatusExpired, got.Status)
		s.Nil(got.RevokedAt)
	})

	s.Run("terminal records are not resurrected", func() {
		r := s.record()
		s.Require().NoError(s.store.Create(ctx, r))
		s.Require().NoError(s.store.UpdateStatus(ctx, r.ID, StatusRevoked, "a", s.now))

		s.NoError(s.store.UpdateStatus(ctx, r.ID, StatusExpired, "", s.now.Add(2*time.Hour)))
		got, err := s.store.FindByID(ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(StatusRevoked, got.Status)
	})

	s.Run("missing record reports not found", func() {
		s.ErrorIs(s.store.UpdateStatus(ctx, id.NewConsentID(), StatusRevoked, "a", s.now), sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestListBySubject() {
	ctx := context.Background()
	r1 := s.record()
	r2 := s.record()
	r2.RequestingParticipant = id.NewParticipantID()
	r3 := s.record()
	r3.Subject = "00000000000000000000000000000000000000000000000000000000000000bb"
	for _, r := range []Record{r1, r2, r3} {
		s.Require().NoError(s.store.Create(ctx, r))
	}

	all, err := s.store.ListBySubject(ctx, r1.Subject, id.ParticipantID{}, "")
	s.Require().NoError(err)
	s.Len(all, 2)

	scoped, err := s.store.ListBySubject(ctx, r1.Subject, r1.RequestingParticipant, StatusGranted)
	s.Require().NoError(err)
	s.Len(scoped, 1)
	s.Equal(r1.ID, scoped[0].ID)
}
