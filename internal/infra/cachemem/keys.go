// Package cachemem caches reseller-key lookups in memory. The key store is
// read-mostly and consulted on every keyed request; validation verdicts are
// never cached, only the store rows they are derived from.
package cachemem

import (
	"context"
	"sync"
	"time"

	"gatekeeper/internal/domain"
)

type KeyCache struct {
	store domain.ResellerKeyStore
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]keyEntry
}

type keyEntry struct {
	key       domain.ResellerKey
	expiresAt time.Time
}

func NewKeyCache(store domain.ResellerKeyStore, ttl time.Duration) *KeyCache {
	return &KeyCache{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]keyEntry),
	}
}

func (c *KeyCache) FindByKey(ctx context.Context, key string) (*domain.ResellerKey, error) {
	if c.ttl <= 0 {
		return c.store.FindByKey(ctx, key)
	}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && c.now().Before(entry.expiresAt) {
		value := entry.key
		c.mu.Unlock()
		return &value, nil
	}
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	resolved, err := c.store.FindByKey(ctx, key)
	if err != nil {
		// Misses and store failures are not cached; a revoked or mistyped
		// key must not linger as a negative entry past its own request.
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = keyEntry{key: *resolved, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return resolved, nil
}
