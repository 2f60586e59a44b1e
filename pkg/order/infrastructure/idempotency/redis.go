package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (uuid.UUID, bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), pendingMarker, ttl).Result()
	if err != nil {
		return uuid.Nil, false, errors.Wrap(err, "failed to reserve idempotency key")
	}
	if ok {
		return uuid.Nil, true, nil
	}

	value, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		// expired between SETNX and GET
		return s.Reserve(ctx, key, ttl)
	}
	if err != nil {
		return uuid.Nil, false, errors.Wrap(err, "failed to read idempotency key")
	}
	if value == pendingMarker {
		return uuid.Nil, false, ErrInProgress
	}

	orderID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false, errors.Wrapf(err, "corrupted idempotency key %q", key)
	}
	return orderID, false, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, orderID uuid.UUID, ttl time.Duration) error {
	return errors.Wrap(s.client.Set(ctx, s.key(key), orderID.String(), ttl).Err(), "failed to complete idempotency key")
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return errors.Wrap(s.client.Del(ctx, s.key(key)).Err(), "failed to release idempotency key")
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}
