// Package blacklist keeps the set of barred contributors in memory, backed
// by the blacklist table.
package blacklist

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"submit_bot/internal/model"
)

// Store is the persistence the cache writes through to.
type Store interface {
	AddBlacklist(ctx context.Context, e *model.BlacklistEntry) error
	RemoveBlacklist(ctx context.Context, userID int64) (bool, error)
	ListBlacklist(ctx context.Context) ([]model.BlacklistEntry, error)
}

// Cache is a write-through cache of the blacklist.
type Cache struct {
	store Store

	mu      sync.RWMutex
	entries map[int64]model.BlacklistEntry
}

// New creates an empty cache. Call Load before use.
func New(store Store) *Cache {
	return &Cache{store: store, entries: make(map[int64]model.BlacklistEntry)}
}

// Load replaces the cache contents with the stored entries.
func (c *Cache) Load(ctx context.Context) error {
	list, err := c.store.ListBlacklist(ctx)
	if err != nil {
		return fmt.Errorf("load blacklist: %w", err)
	}
	entries := make(map[int64]model.BlacklistEntry, len(list))
	for _, e := range list {
		entries[e.UserID] = e
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Contains reports whether userID is blacklisted.
func (c *Cache) Contains(userID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[userID]
	return ok
}

// Add persists an entry and then caches it.
func (c *Cache) Add(ctx context.Context, userID int64, reason string) error {
	e := model.BlacklistEntry{UserID: userID, Reason: reason}
	if err := c.store.AddBlacklist(ctx, &e); err != nil {
		return fmt.Errorf("add to blacklist: %w", err)
	}

	c.mu.Lock()
	c.entries[userID] = e
	c.mu.Unlock()
	return nil
}

// Remove deletes an entry from the store and the cache. It reports whether
// the user was listed.
func (c *Cache) Remove(ctx context.Context, userID int64) (bool, error) {
	removed, err := c.store.RemoveBlacklist(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("remove from blacklist: %w", err)
	}

	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
	return removed, nil
}

// List returns the cached entries ordered by user id.
func (c *Cache) List() []model.BlacklistEntry {
	c.mu.RLock()
	out := make([]model.BlacklistEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
