package policy

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

// RedisStore keeps toggles in a hash and the lock flag in its own key.
// Toggles missing from the hash keep their default.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context) (models.FilterPolicy, bool, error) {
	p := models.DefaultFilterPolicy()

	pipe := s.client.TxPipeline()
	hash := pipe.HGetAll(ctx, constants.RedisKeyPolicyFilters)
	lock := pipe.Get(ctx, constants.RedisKeyPolicyLocked)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return p, false, fmt.Errorf("load policy: %w", err)
	}

	for k, v := range hash.Val() {
		t, err := ParseToggle(k)
		if err != nil {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			continue
		}
		p, _ = With(p, t, b)
	}

	locked := false
	if v, err := lock.Result(); err == nil {
		locked, _ = strconv.ParseBool(v)
	} else if err != redis.Nil {
		return p, false, fmt.Errorf("load lock: %w", err)
	}
	return p, locked, nil
}

func (s *RedisStore) SaveToggle(ctx context.Context, t Toggle, v bool) error {
	if _, err := ParseToggle(string(t)); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, constants.RedisKeyPolicyFilters, string(t), strconv.FormatBool(v)).Err(); err != nil {
		return fmt.Errorf("save toggle: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveLocked(ctx context.Context, locked bool) error {
	if err := s.client.Set(ctx, constants.RedisKeyPolicyLocked, strconv.FormatBool(locked), 0).Err(); err != nil {
		return fmt.Errorf("save lock: %w", err)
	}
	return nil
}

// Reset removes every persisted toggle and the lock flag.
func (s *RedisStore) Reset(ctx context.Context) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, constants.RedisKeyPolicyFilters)
	pipe.Del(ctx, constants.RedisKeyPolicyLocked)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reset policy: %w", err)
	}
	return nil
}
