package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/bastion"
)

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	subj := bastion.SubjectRef{Kind: bastion.SubjectUser, ID: 1}
	res := bastion.ResourceRef{Kind: bastion.ResourceRepository, ID: 100}

	// Miss
	_, ok := c.GetLevel(ctx, "t1", subj, res)
	if ok {
		t.Fatal("expected cache miss")
	}

	// Set + Hit
	c.SetLevel(ctx, "t1", subj, res, "repository.write")
	got, ok := c.GetLevel(ctx, "t1", subj, res)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != "repository.write" {
		t.Fatalf("expected repository.write, got %s", got)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(1 * time.Millisecond))

	subj := bastion.SubjectRef{Kind: bastion.SubjectUser, ID: 1}
	res := bastion.ResourceRef{Kind: bastion.ResourceRepository, ID: 100}

	c.SetLevel(ctx, "t1", subj, res, "repository.read")
	time.Sleep(5 * time.Millisecond)

	_, ok := c.GetLevel(ctx, "t1", subj, res)
	if ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestMemoryCacheInvalidateUsers(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

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

func TestMemoryCacheInvalidateTenant(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

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

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))

	subj := bastion.SubjectRef{Kind: bastion.SubjectUser, ID: 1}
	for i := 0; i < 5; i++ {
		res := bastion.ResourceRef{Kind: bastion.ResourceRepository, ID: int64(i)}
		c.SetLevel(ctx, "t1", subj, res, "repository.read")
	}

	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	if size > 2 {
		t.Fatalf("expected max 2 entries, got %d", size)
	}
}
