package texture

import (
	"image"
	"sync"
)

// Resolver resolves a texture name to a decoded image.
type Resolver interface {
	Resolve(name string) *image.NRGBA
}

// Cache is a concurrency-safe decoded texture cache over an Index. Misses
// and undecodable files are cached as nil.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*image.NRGBA
	index *Index
}

// NewCache creates a cache backed by index.
func NewCache(index *Index) *Cache {
	return &Cache{
		items: make(map[string]*image.NRGBA),
		index: index,
	}
}

// Resolve loads and caches a texture by name. Returns nil if not found.
func (c *Cache) Resolve(name string) *image.NRGBA {
	if c == nil || c.index == nil {
		return nil
	}
	path, ok := c.index.ResolvePath(name)
	if !ok {
		return nil
	}

	c.mu.RLock()
	img, seen := c.items[path]
	c.mu.RUnlock()
	if seen {
		return img
	}

	img, _ = LoadTexture(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, seen := c.items[path]; seen {
		return prev
	}
	c.items[path] = img
	return img
}
