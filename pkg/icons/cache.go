// Package icons builds marker icon descriptors and memoizes them by visual state.
// The number of distinct states is small (kind × type × bucket), so the cache
// never evicts and lives as long as the process.
package icons

import "sync"

// Point is a pixel offset or size in layout units
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Descriptor is the immutable visual definition of a marker.
// A changed visual state produces a new Descriptor under a new cache key;
// existing descriptors are never modified.
type Descriptor struct {
	Markup    string `json:"markup"`
	ClassName string `json:"className,omitempty"`
	Size      Point  `json:"size"`
	Anchor    Point  `json:"anchor"`
}

// Cache is an append-only key to descriptor map shared by every layer.
// Builder invocation and store happen under one lock, so concurrent callers
// for the same key always observe a single descriptor.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Descriptor
}

// NewCache creates an empty icon cache. Construct it once at start-up and
// inject it into every Factory that should share icons.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Descriptor)}
}

// GetOrCreate returns the descriptor stored under key, building and storing it
// on first use. build must depend only on the semantic parts of key.
// A panicking builder is a programming error and is not recovered.
func (c *Cache) GetOrCreate(key string, build func() *Descriptor) *Descriptor {
	d, _ := c.lookup(key, build)
	return d
}

func (c *Cache) lookup(key string, build func() *Descriptor) (*Descriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.entries[key]; ok {
		return d, true
	}
	d := build()
	c.entries[key] = d
	return d, false
}

// Len returns the number of distinct descriptors built so far
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
