package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// Cache memoises compilation outcomes by a digest of the source and the pinned settings. Since
// compilation is a pure function of those inputs, a hit is indistinguishable from a fresh build.
//
// A nil *Cache is valid and caches nothing.
type Cache struct {
	store *bigcache.BigCache
}

// NewCache returns a Cache whose entries live for lifeWindow.
func NewCache(ctx context.Context, lifeWindow time.Duration) (*Cache, error) {
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.Shards = 64
	cfg.MaxEntrySize = 64 * 1024
	cfg.Verbose = false

	store, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create compile cache: %w", err)
	}

	return &Cache{store: store}, nil
}

// Close releases the cache.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}

	return c.store.Close()
}

// Len returns the number of cached outcomes.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}

	return c.store.Len()
}

func (c *Cache) get(key string) (*outcome, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.store.Get(key)
	if err != nil {
		return nil, false
	}

	var out outcome
	if err = json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}

	return &out, true
}

func (c *Cache) put(key string, out *outcome) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return
	}
	// An entry that does not fit is simply not cached.
	_ = c.store.Set(key, raw)
}

func cacheKey(source, name string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|", PinnedVersion, OptimizerRuns, EVMVersion, name)
	h.Write([]byte(source))

	return hex.EncodeToString(h.Sum(nil))
}
