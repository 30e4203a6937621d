// Package cache provides caching implementations for resolved
// effective permissions.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xraph/bastion"
)

// Compile-time interface check.
var _ bastion.Cache = (*Memory)(nil)

// Memory is an in-memory cache with TTL-based expiration.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	level     bastion.Level
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     5 * time.Minute,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetLevel returns a cached effective permission.
func (m *Memory) GetLevel(_ context.Context, tenantID string, subj bastion.SubjectRef, res bastion.ResourceRef) (bastion.Level, bool) {
	key := levelKey(tenantID, subj, res)
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", false
	}
	return e.level, true
}

// SetLevel stores a resolved effective permission.
func (m *Memory) SetLevel(_ context.Context, tenantID string, subj bastion.SubjectRef, res bastion.ResourceRef, level bastion.Level) {
	key := levelKey(tenantID, subj, res)
	m.mu.Lock()
	defer m.mu.Unlock()

	// Evict if at capacity.
	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[key] = &entry{
		level:     level,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// InvalidateUsers removes all cached levels for the given user IDs.
func (m *Memory) InvalidateUsers(_ context.Context, tenantID string, userIDs []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, userID := range userIDs {
		prefix := userKeyPrefix(tenantID, userID)
		for k := range m.entries {
			if strings.HasPrefix(k, prefix) {
				delete(m.entries, k)
			}
		}
	}
}

// InvalidateTenant removes all cached levels for a tenant.
func (m *Memory) InvalidateTenant(_ context.Context, tenantID string) {
	prefix := tenantID + ":"
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
}

func levelKey(tenantID string, subj bastion.SubjectRef, res bastion.ResourceRef) string {
	return fmt.Sprintf("%s:%s:%d:%s:%d", tenantID, subj.Kind, subj.ID, res.Kind, res.ID)
}

func userKeyPrefix(tenantID string, userID int64) string {
	return fmt.Sprintf("%s:%s:%d:", tenantID, bastion.SubjectUser, userID)
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
