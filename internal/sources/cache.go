package sources

import (
	"context"
	"sync"
	"time"

	"covid19datasets/internal/table"
)

// LoadFunc produces a fresh table from upstream
type LoadFunc func(ctx context.Context) (*table.Table, error)

// Cached holds the result of one load per instance. Callers always receive
// a deep copy, so they may mutate what they get without touching the cache.
type Cached struct {
	mu       sync.Mutex
	load     LoadFunc
	data     *table.Table
	loadedAt time.Time
	loads    int
}

// NewCached creates a cache around load
func NewCached(load LoadFunc) *Cached {
	return &Cached{load: load}
}

// Get returns a copy of the cached table, loading it on first use
func (c *Cached) Get(ctx context.Context) (*table.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data == nil {
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
	}
	return c.data.Clone(), nil
}

// Reload loads again and replaces the cached table. A failed load keeps the
// previous table.
func (c *Cached) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh(ctx)
}

// LoadedAt returns when the cached table was loaded, zero if never
func (c *Cached) LoadedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedAt
}

// Loads returns how many successful loads have happened
func (c *Cached) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

func (c *Cached) refresh(ctx context.Context) error {
	data, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.data = data
	c.loadedAt = time.Now()
	c.loads++
	return nil
}
