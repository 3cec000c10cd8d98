package cache

import (
	"context"
	"sync"
	"time"

	"github.com/labtrack/lims/internal/domain/providers"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryAdapter is a process-local CacheProvider. Expired keys are dropped lazily on read.
type MemoryAdapter struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryAdapter creates an empty in-process cache
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

var _ providers.CacheProvider = (*MemoryAdapter)(nil)

// Get retrieves a value from cache
func (a *MemoryAdapter) Get(_ context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	item, ok := a.lookup(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return append([]byte(nil), item.value...), nil
}

// Set stores a value; a non-positive expiration keeps it forever
func (a *MemoryAdapter) Set(_ context.Context, key string, value []byte, expirationSeconds int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	item := memoryItem{value: append([]byte(nil), value...)}
	if expirationSeconds > 0 {
		item.expiresAt = a.now().Add(time.Duration(expirationSeconds) * time.Second)
	}
	a.items[key] = item
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.items, key)
	return nil
}

// Exists checks if a key exists in cache
func (a *MemoryAdapter) Exists(_ context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.lookup(key)
	return ok, nil
}

func (a *MemoryAdapter) lookup(key string) (memoryItem, bool) {
	item, ok := a.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expiresAt.IsZero() && !a.now().Before(item.expiresAt) {
		delete(a.items, key)
		return memoryItem{}, false
	}
	return item, true
}
