//go:build integration

package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "datex/pkg/domain"
	"datex/pkg/platform/sentinel"
	"datex/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	rc    *containers.RedisContainer
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.rc = containers.NewRedisContainer(s.T())
	s.store = NewRedisStore(s.rc.Client, time.Hour)
}

func (s *RedisStoreSuite) TearDownSuite() {
	_ = s.rc.Client.Close()
	_ = s.rc.Container.Terminate(context.Background())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.rc.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestBundleRoundTrip() {
	ctx := context.Background()
	provider := id.NewParticipantID()
	subject := id.Fingerprint("fp-redis")

	updated := time.Date(2026, 3, 30, 8, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.SaveBundle(ctx, provider, subject, Bundle{
		Category:     id.CategoryContactInformation,
		Data:         map[string]any{"email": "c@example.com", "phone": "+49 30 1234"},
		Completeness: 0.9,
		UpdatedAt:    updated,
	}))

	got, err := s.store.FindBundle(ctx, provider, subject, id.CategoryContactInformation)
	s.Require().NoError(err)
	s.Equal("c@example.com", got.Data["email"])
	s.InDelta(0.9, got.Completeness, 0.0001)
	s.True(updated.Equal(got.UpdatedAt))
}

func (s *RedisStoreSuite) TestHeldCategories() {
	ctx := context.Background()
	provider := id.NewParticipantID()
	subject := id.Fingerprint("fp-held")

	held, err := s.store.HeldCategories(ctx, provider, subject)
	s.Require().NoError(err)
	s.Empty(held)

	for _, cat := range []id.DataCategory{id.CategoryBasicData, id.CategoryAddressData} {
		s.Require().NoError(s.store.SaveBundle(ctx, provider, subject, Bundle{
			Category: cat,
			Data:     map[string]any{"k": "v"},
		}))
	}

	held, err = s.store.HeldCategories(ctx, provider, subject)
	s.Require().NoError(err)
	s.True(held.Contains(id.CategoryBasicData))
	s.True(held.Contains(id.CategoryAddressData))
	s.False(held.Contains(id.CategoryKYCData))
}

func (s *RedisStoreSuite) TestMissingBundle() {
	_, err := s.store.FindBundle(context.Background(),
		id.NewParticipantID(), id.Fingerprint("nobody"), id.CategoryBasicData)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
