// Package nlcache keeps a small, fixed number of recently written or read
// zone connectivity arrays so that mesh-order field compression can find
// the nodelist of the mesh a variable is defined on.
//
// An entry is identified by its owning file and by the zonelist name, the
// mesh name, or both. The zonelist is usually written before the mesh
// that references it, so entries are registered under the zonelist name
// and later linked to the mesh by a lookup that names both.
package nlcache

import (
	"sync"
)

// DefaultCapacity is the number of slots of a cache from New(0).
const DefaultCapacity = 32

// Entry is one cached connectivity array.
type Entry struct {
	File     string
	Zonelist string
	Mesh     string
	Rank     int
	Cells    int
	Origin   int
	Nodes    []int32
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Nodes = append([]int32(nil), e.Nodes...)
	return &c
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	slots   []*Entry
	dropped int
}

// New returns a cache with the given number of slots.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{slots: make([]*Entry, 0, capacity)}
}

// Cap returns the number of slots.
func (c *Cache) Cap() int {
	return cap(c.slots)
}

// Len returns the number of occupied slots.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Dropped returns how many registrations were refused because every slot
// was taken.
func (c *Cache) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *Cache) find(file, zonelist, mesh string) *Entry {
	for _, e := range c.slots {
		if e.File != file {
			continue
		}
		if zonelist != "" && e.Zonelist == zonelist {
			return e
		}
		if mesh != "" && e.Mesh == mesh {
			return e
		}
	}
	return nil
}

// Lookup returns a copy of the entry of file matching zonelist or mesh.
// Either name may be empty. When both are given, a match on one fills in
// the other if the entry lacks it.
func (c *Cache) Lookup(file, zonelist, mesh string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.find(file, zonelist, mesh)
	if e == nil {
		return nil, false
	}
	if e.Zonelist == "" {
		e.Zonelist = zonelist
	}
	if e.Mesh == "" {
		e.Mesh = mesh
	}
	return e.clone(), true
}

// Register stores a copy of e. It is a no-op when an entry with the same
// identity and connectivity is already cached; a cached entry with the same
// identity but other connectivity is replaced, keeping the names it was
// linked to. It reports false when the cache is full and e was dropped.
func (c *Cache) Register(e Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, old := range c.slots {
		if old.File != e.File {
			continue
		}
		if (e.Zonelist == "" || old.Zonelist != e.Zonelist) && (e.Mesh == "" || old.Mesh != e.Mesh) {
			continue
		}
		if old.sameNodes(&e) {
			if old.Zonelist == "" {
				old.Zonelist = e.Zonelist
			}
			if old.Mesh == "" {
				old.Mesh = e.Mesh
			}
			return true
		}
		n := e.clone()
		if n.Zonelist == "" {
			n.Zonelist = old.Zonelist
		}
		if n.Mesh == "" {
			n.Mesh = old.Mesh
		}
		c.slots[i] = n
		return true
	}
	if len(c.slots) == cap(c.slots) {
		c.dropped++
		return false
	}
	c.slots = append(c.slots, e.clone())
	return true
}

func (e *Entry) sameNodes(o *Entry) bool {
	if e.Rank != o.Rank || e.Cells != o.Cells || e.Origin != o.Origin || len(e.Nodes) != len(o.Nodes) {
		return false
	}
	for i := range e.Nodes {
		if e.Nodes[i] != o.Nodes[i] {
			return false
		}
	}
	return true
}

func (c *Cache) evict(match func(*Entry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.slots[:0]
	n := 0
	for _, e := range c.slots {
		if match(e) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(c.slots); i++ {
		c.slots[i] = nil
	}
	c.slots = kept
	return n
}

// EvictFile removes every entry of file.
func (c *Cache) EvictFile(file string) int {
	return c.evict(func(e *Entry) bool { return e.File == file })
}

// EvictMesh removes the entries of file linked to mesh.
func (c *Cache) EvictMesh(file, mesh string) int {
	return c.evict(func(e *Entry) bool { return e.File == file && e.Mesh == mesh })
}

// EvictAll empties the cache.
func (c *Cache) EvictAll() int {
	return c.evict(func(*Entry) bool { return true })
}
