// Package cache provides the persistent view cache for instant rehydration.
//
// The cache is opportunistic: entries are written after every successful
// snapshot fetch and read once at view activation. A missing or corrupt
// entry is never an error the engine acts on; live fetches remain the
// source of truth.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	errs "stockdeck/internal/errors"
	"stockdeck/internal/models"
)

// Store is the injectable key-value abstraction backing the view cache.
type Store interface {
	// Get returns the raw bytes for a key. The boolean is false when the
	// key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores raw bytes under a key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Close releases the underlying resources.
	Close() error
}

// Entry is one cached result list, keyed by view.
type Entry struct {
	ViewKey  string              `json:"view_key"`
	Records  []models.Instrument `json:"records"`
	StoredAt time.Time           `json:"stored_at"`
}

// ViewKey derives the deterministic cache key for a view.
func ViewKey(view models.ViewState) string {
	canonical := strings.ToLower(strings.TrimSpace(view.QueryText)) + "|" +
		strings.ToLower(strings.TrimSpace(view.SectorFilter)) + "|" +
		fmt.Sprintf("%d", view.Limit)
	sum := sha1.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// ViewCache wraps a Store with entry encoding and corrupt-entry tolerance.
type ViewCache struct {
	store Store
}

// NewViewCache creates a view cache on top of the given store.
func NewViewCache(store Store) *ViewCache {
	return &ViewCache{store: store}
}

// Load returns the cached records for a view, or ok=false when the entry is
// absent or unreadable. Corrupt entries are reported via the error but ok
// stays false; callers treat them the same as a miss.
func (c *ViewCache) Load(ctx context.Context, view models.ViewState) ([]models.Instrument, bool, error) {
	key := ViewKey(view)

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, errs.NewCacheError("get", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, errs.NewCacheError("decode", key, fmt.Errorf("%w: %v", errs.ErrCacheCorrupt, err))
	}

	return entry.Records, true, nil
}

// Save stores the records for a view, overwriting any previous entry.
func (c *ViewCache) Save(ctx context.Context, view models.ViewState, records []models.Instrument) error {
	key := ViewKey(view)

	entry := Entry{
		ViewKey:  key,
		Records:  records,
		StoredAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return errs.NewCacheError("encode", key, err)
	}

	if err := c.store.Put(ctx, key, raw); err != nil {
		return errs.NewCacheError("put", key, err)
	}

	return nil
}

// Close closes the underlying store.
func (c *ViewCache) Close() error {
	return c.store.Close()
}
