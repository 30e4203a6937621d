package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/bastion"
)

func setupRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, WithRedisTTL(time.Minute))
}

func TestRedisCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := setupRedis(t)

	subj := bastion.SubjectRef{Kind: bastion.SubjectUser, ID: 1}
	res := bastion.ResourceRef{Kind: bastion.ResourceRepository, ID: 100}

	if _, ok := c.GetLevel(ctx, "t1", subj, res); ok {
		t.Fatal("expected cache miss")
	}

	c.SetLevel(ctx, "t1", subj, res, "repository.admin")
	got, ok := c.GetLevel(ctx, "t1", subj, res)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != "repository.admin" {
		t.Fatalf("expected repository.admin, got %s", got)
	}
}

func TestRedisCacheInvalidateUsers(t *testing.T) {
	ctx := context.Background()
	c := setupRedis(t)

	u1 := bastion.SubjectRef{Kind: bastion.SubjectUser, ID: 1}
	u2 := bastion.SubjectRef{Kind: bastion.SubjectUser, ID: 2}
	res := bastion.ResourceRef{Kind: bastion.ResourceRepository, ID: 100}

	c.SetLevel(ctx, "t1", u1, res, "repository.read")
	c.SetLevel(ctx, "t1", u2, res, "repository.write")

	c.InvalidateUsers(ctx, "t1", []int64{1})

	if _, ok := c.GetLevel(ctx, "t1", u1, res); ok {
		t.Fatal("u1 should be invalidated")
	}
	if _, ok := c.GetLevel(ctx, "t1", u2, res); !ok {
		t.Fatal("u2 should still be cached")
	}
}

func TestRedisCacheInvalidateTenant(t *testing.T) {
	ctx := context.Background()
	c := setupRedis(t)

	subj := bastion.SubjectRef{Kind: bastion.SubjectUser, ID: 1}
	res := bastion.ResourceRef{Kind: bastion.ResourceRepository, ID: 100}

	c.SetLevel(ctx, "t1", subj, res, "repository.read")
	c.SetLevel(ctx, "t2", subj, res, "repository.read")

	c.InvalidateTenant(ctx, "t1")

	if _, ok := c.GetLevel(ctx, "t1", subj, res); ok {
		t.Fatal("t1 should be invalidated")
	}
	if _, ok := c.GetLevel(ctx, "t2", subj, res); !ok {
		t.Fatal("t2 should still be cached")
	}
}

func TestRedisCacheDown(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedis(client)

	subj := bastion.SubjectRef{Kind: bastion.SubjectUser, ID: 1}
	res := bastion.ResourceRef{Kind: bastion.ResourceRepository, ID: 100}

	c.SetLevel(ctx, "t1", subj, res, "repository.read")
	mr.Close()

	// A dead backend degrades to misses, not errors.
	if _, ok := c.GetLevel(ctx, "t1", subj, res); ok {
		t.Fatal("expected miss after backend shutdown")
	}
}
