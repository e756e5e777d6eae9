package attendance

import (
	"context"
	"sync"
)

// =============================================================================
// CACHED CATALOG - Read-mostly shift view with explicit invalidation
// =============================================================================

// CachedCatalog caches the shift list from a ShiftStore until
// Invalidate is called. It replaces the module-level dictionary the
// engine would otherwise be tempted to keep: the owner of the change
// notification (API handler, admin CLI) invalidates after every save.
type CachedCatalog struct {
	store ShiftStore

	mu     sync.RWMutex
	shifts []ShiftDefinition
	byName map[string]ShiftDefinition
	loaded bool
}

func NewCachedCatalog(store ShiftStore) *CachedCatalog {
	return &CachedCatalog{store: store}
}

func (c *CachedCatalog) All(ctx context.Context) ([]ShiftDefinition, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ShiftDefinition, len(c.shifts))
	copy(out, c.shifts)
	return out, nil
}

func (c *CachedCatalog) ByName(ctx context.Context, name string) (ShiftDefinition, error) {
	if err := c.ensure(ctx); err != nil {
		return ShiftDefinition{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byName[name]
	if !ok {
		return ShiftDefinition{}, ErrNotFound
	}
	return s, nil
}

// Invalidate drops the cached view; the next read reloads from the store.
func (c *CachedCatalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.shifts = nil
	c.byName = nil
}

func (c *CachedCatalog) ensure(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	shifts, err := c.store.AllShifts(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]ShiftDefinition, len(shifts))
	for _, s := range shifts {
		byName[s.Name] = s
	}
	c.shifts = shifts
	c.byName = byName
	c.loaded = true
	return nil
}

// =============================================================================
// PER-BATCH CATALOG - Simplest correct alternative: re-read every batch
// =============================================================================

// FreshCatalog reads through to the store on every call. Correct by
// construction; use it when no invalidation hook is available.
type FreshCatalog struct {
	Store ShiftStore
}

func (f FreshCatalog) All(ctx context.Context) ([]ShiftDefinition, error) {
	return f.Store.AllShifts(ctx)
}

func (f FreshCatalog) ByName(ctx context.Context, name string) (ShiftDefinition, error) {
	return f.Store.ShiftByName(ctx, name)
}

func (f FreshCatalog) Invalidate() {}
