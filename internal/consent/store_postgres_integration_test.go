//go:build integration

package consent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "datex/pkg/domain"
	"datex/pkg/platform/sentinel"
	"datex/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
	now   time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T(), "../../migrations")
	s.store = NewPostgresStore(s.pg.DB, 5*time.Second)
	s.now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.pg.DB.Close()
	_ = s.pg.Container.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "consents"))
}

func (s *PostgresStoreSuite) record() Record {
	return Record{
		ID:                    id.NewConsentID(),
		Subject:               "00000000000000000000000000000000000000000000000000000000000000aa",
		RequestingParticipant: id.NewParticipantID(),
		ProvidingParticipant:  id.NewParticipantID(),
		Purpose:               id.PurposeAccountOpening,
		Categories:            id.NewCategorySet(id.CategoryBasicData, id.CategoryKYCData),
		Status:                StatusGranted,
		CreatedAt:             s.now,
		ExpiresAt:             s.now.Add(24 * time.Hour),
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	r := s.record()
	s.Require().NoError(s.store.Create(ctx, r))

	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.ID, got.ID)
	s.Equal(r.Subject, got.Subject)
	s.Equal(r.Categories, got.Categories)
	s.Equal(StatusGranted, got.Status)
	s.True(r.ExpiresAt.Equal(got.ExpiresAt))
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.NewConsentID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestGuardedRevoke() {
	ctx := context.Background()

	s.Run("before expiry moves to revoked", func() {
		r := s.record()
		s.Require().NoError(s.store.Create(ctx, r))

		s.Require().NoError(s.store.UpdateStatus(ctx, r.ID, StatusRevoked, "customer", s.now.Add(time.Hour)))
		got, err := s.store.FindByID(ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(StatusRevoked, got.Status)
		s.Equal("customer", got.RevokedBy)
		s.Require().NotNil(got.RevokedAt)
	})

	s.Run("past expiry records expired instead", func() {
		r := s.record()
		s.Require().NoError(s.store.Create(ctx, r))

		s.Require().NoError(s.store.UpdateStatus(ctx, r.ID, StatusRevoked, "customer", s.now.Add(48*time.Hour)))
		got, err := s.store.FindByID(ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(StatusExpired, got.Status)
		s.Nil(got.RevokedAt)
	})

	s.Run("terminal records stay unchanged", func() {
		r := s.record()
		s.Require().NoError(s.store.Create(ctx, r))
		s.Require().NoError(s.store.UpdateStatus(ctx, r.ID, StatusRevoked, "first", s.now.Add(time.Hour)))

		s.NoError(s.store.UpdateStatus(ctx, r.ID, StatusRevoked, "second", s.now.Add(2*time.Hour)))
		got, err := s.store.FindByID(ctx, r.ID)
		s.Require().NoError(err)
		s.Equal("first", got.RevokedBy)
	})
}

func (s *PostgresStoreSuite) TestListBySubject() {
	ctx := context.Background()
	r1 := s.record()
	r2 := s.record()
	s.Require().NoError(s.store.Create(ctx, r1))
	s.Require().NoError(s.store.Create(ctx, r2))

	all, err := s.store.ListBySubject(ctx, r1.Subject, id.ParticipantID{}, StatusGranted)
	s.Require().NoError(err)
	s.Len(all, 2)

	scoped, err := s.store.ListBySubject(ctx, r1.Subject, r1.RequestingParticipant, StatusGranted)
	s.Require().NoError(err)
	s.Len(scoped, 1)
	s.Equal(r1.ID, scoped[0].ID)
}

func (s *PostgresStoreSuite) TestStoreTimeoutBoundsRoundTrips() {
	tight := NewPostgresStore(s.pg.DB, time.Nanosecond)

	_, err := tight.FindByID(context.Background(), id.NewConsentID())
	s.Require().Error(err)
	s.ErrorIs(err, context.DeadlineExceeded)
}
