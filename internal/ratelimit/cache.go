package ratelimit

import (
	"sync"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
)

// settingsCache is a TTL cache of per-user rate-limit settings. Entries are
// stored and returned as copies so a reader never observes a value another
// goroutine is mutating. Invalidate is called synchronously from every
// settings mutation before it returns.
//
// Each user carries a generation number that Invalidate bumps. A fill must
// present the generation observed before its repository read; a fill whose
// read began before the latest invalidation is refused, so a slow resolution
// can never reinstall pre-mutation settings over a fresh invalidation.
type settingsCache struct {
	mu          sync.RWMutex
	entries     map[string]cacheEntry
	generations map[string]uint64
	ttl         time.Duration
	now         func() time.Time
}

type cacheEntry struct {
	settings  domain.UserRateLimitSettings
	standard  *domain.PolicyLimit
	converted *domain.PolicyLimit
	expiresAt time.Time
}

func newSettingsCache(ttl time.Duration) *settingsCache {
	return &settingsCache{
		entries:     make(map[string]cacheEntry),
		generations: make(map[string]uint64),
		ttl:         ttl,
		now:         time.Now,
	}
}

func copyLimit(limit *domain.PolicyLimit) *domain.PolicyLimit {
	if limit == nil {
		return nil
	}
	copied := *limit
	return &copied
}

// Get returns a copy of the cached settings, or nil on miss or expiry.
func (c *settingsCache) Get(userID string) *domain.UserRateLimitSettings {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil
	}

	settings := entry.settings
	settings.StandardOverride = copyLimit(entry.standard)
	settings.ConversionOverride = copyLimit(entry.converted)
	return &settings
}

// Generation returns the user's current invalidation generation. Callers
// read it before loading from the repository and hand it back to Set.
func (c *settingsCache) Generation(userID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[userID]
}

// Set stores a copy of settings under the configured TTL. The fill is
// dropped when an invalidation happened after generation was read.
func (c *settingsCache) Set(userID string, settings *domain.UserRateLimitSettings, generation uint64) {
	entry := cacheEntry{
		settings:  *settings,
		standard:  copyLimit(settings.StandardOverride),
		converted: copyLimit(settings.ConversionOverride),
		expiresAt: c.now().Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[userID] != generation {
		return
	}
	c.entries[userID] = entry
}

// Invalidate drops the user's entry and bumps the generation so in-flight
// fills that read before this point cannot land afterwards.
func (c *settingsCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.generations[userID]++
	c.mu.Unlock()
}
