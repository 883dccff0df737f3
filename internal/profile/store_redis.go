package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "datex/pkg/domain"
	"datex/pkg/platform/sentinel"
)

const (
	bundleKeyPrefix = "datex:profile:"
	heldKeySuffix   = ":held"
)

// RedisStore keeps profile bundles in Redis with a retention TTL, matching
// the document-store TTL design of the upstream source. Bundles are JSON
// values; the per-(provider,subject) held-category set lives in a Redis set
// so attestation checks are one round trip.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func bundleKeyOf(provider id.ParticipantID, subject id.Fingerprint, category id.DataCategory) string {
	return fmt.Sprintf("%s%s:%s:%s", bundleKeyPrefix, provider.String(), subject.String(), category)
}

func heldKeyOf(provider id.ParticipantID, subject id.Fingerprint) string {
	return fmt.Sprintf("%s%s:%s%s", bundleKeyPrefix, provider.String(), subject.String(), heldKeySuffix)
}

func (s *RedisStore) FindBundle(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint, category id.DataCategory) (Bundle, error) {
	raw, err := s.client.Get(ctx, bundleKeyOf(provider, subject, category)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Bundle{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Bundle{}, fmt.Errorf("find bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return Bundle{}, fmt.Errorf("unmarshal bundle: %w", err)
	}
	return b, nil
}

func (s *RedisStore) HeldCategories(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint) (id.CategorySet, error) {
	members, err := s.client.SMembers(ctx, heldKeyOf(provider, subject)).Result()
	if err != nil {
		return nil, fmt.Errorf("held categories: %w", err)
	}
	return id.CategorySetFromStrings(members), nil
}

func (s *RedisStore) SaveBundle(ctx context.Context, provider id.ParticipantID, subject id.Fingerprint, bundle Bundle) error {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, bundleKeyOf(provider, subject, bundle.Category), raw, s.ttl)
	pipe.SAdd(ctx, heldKeyOf(provider, subject), string(bundle.Category))
	pipe.Expire(ctx, heldKeyOf(provider, subject), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	return nil
}
