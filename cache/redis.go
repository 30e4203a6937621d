package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/bastion"
)

// Compile-time interface check.
var _ bastion.Cache = (*Redis)(nil)

// Redis caches resolved levels in Redis, sharing invalidation across
// engine instances. Operations are best-effort: a Redis outage degrades
// to cache misses, never to resolution failures.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures the Redis cache.
type RedisOption func(*Redis)

// WithRedisTTL sets the cache entry time-to-live.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithKeyPrefix sets the key namespace prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// NewRedis creates a Redis-backed cache over an existing client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    5 * time.Minute,
		prefix: "bastion:levels",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetLevel returns a cached effective permission.
func (r *Redis) GetLevel(ctx context.Context, tenantID string, subj bastion.SubjectRef, res bastion.ResourceRef) (bastion.Level, bool) {
	val, err := r.client.Get(ctx, r.key(tenantID, subj, res)).Result()
	if err != nil {
		// redis.Nil and transport errors alike read as misses.
		return "", false
	}
	return bastion.Level(val), true
}

// SetLevel stores a resolved effective permission.
func (r *Redis) SetLevel(ctx context.Context, tenantID string, subj bastion.SubjectRef, res bastion.ResourceRef, level bastion.Level) {
	r.client.Set(ctx, r.key(tenantID, subj, res), string(level), r.ttl)
}

// InvalidateUsers removes all cached levels for the given user IDs.
func (r *Redis) InvalidateUsers(ctx context.Context, tenantID string, userIDs []int64) {
	for _, userID := range userIDs {
		pattern := fmt.Sprintf("%s:%s:%s:%d:*", r.prefix, tenantID, bastion.SubjectUser, userID)
		r.deleteMatching(ctx, pattern)
	}
}

// InvalidateTenant removes all cached levels for a tenant.
func (r *Redis) InvalidateTenant(ctx context.Context, tenantID string) {
	r.deleteMatching(ctx, fmt.Sprintf("%s:%s:*", r.prefix, tenantID))
}

func (r *Redis) deleteMatching(ctx context.Context, pattern string) {
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		r.client.Del(ctx, keys...)
	}
}

func (r *Redis) key(tenantID string, subj bastion.SubjectRef, res bastion.ResourceRef) string {
	return fmt.Sprintf("%s:%s:%s:%d:%s:%d", r.prefix, tenantID, subj.Kind, subj.ID, res.Kind, res.ID)
}
