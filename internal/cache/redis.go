package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
	"github.com/aman-zulfiqar/pair-detector/internal/storage"
)

var _ storage.CandidateFeed = (*RedisCache)(nil)

// RedisCache publishes recorded candidates and keeps a capped recent list.
type RedisCache struct {
	client    *redis.Client
	maxRecent int64
}

func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCacheFromClient(client), nil
}

func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, maxRecent: constants.MaxRecentTokens}
}

// Client exposes the connection so other stores can share it.
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

// Record pushes c onto the recent list and publishes it in one transaction.
func (r *RedisCache) Record(ctx context.Context, c *models.TokenCandidate) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentTokens, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentTokens, 0, r.maxRecent-1)
	pipe.Publish(ctx, constants.PubSubChannelTokens, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record candidate: %w", err)
	}
	return nil
}

func (r *RedisCache) RecentCandidates(ctx context.Context, limit int64) ([]*models.TokenCandidate, error) {
	if limit <= 0 || limit > r.maxRecent {
		limit = r.maxRecent
	}
	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentTokens, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent candidates: %w", err)
	}

	out := make([]*models.TokenCandidate, 0, len(vals))
	for _, v := range vals {
		var c models.TokenCandidate
		if err := json.Unmarshal([]byte(v), &c); err != nil {
			continue
		}
		out = append(out, &c)
	}
	return out, nil
}

func (r *RedisCache) LatestCandidate(ctx context.Context) (*models.TokenCandidate, error) {
	v, err := r.client.LIndex(ctx, constants.RedisKeyRecentTokens, 0).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest candidate: %w", err)
	}

	var c models.TokenCandidate
	if err := json.Unmarshal([]byte(v), &c); err != nil {
		return nil, fmt.Errorf("unmarshal candidate: %w", err)
	}
	return &c, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
