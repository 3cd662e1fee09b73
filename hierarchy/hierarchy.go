package hierarchy

import (
	"reflect"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// memoSize bounds the payload-type → widened-list memo. Eviction only costs a
// recomputation; it never changes a result.
const memoSize = 1024

// Cache computes and memoizes the widened type list for payload types.
type Cache struct {
	mu     sync.Mutex
	memo   *lru.Cache
	ifaces []reflect.Type
	known  map[reflect.Type]bool
	edges  map[reflect.Type][]reflect.Type
}

// New creates an empty hierarchy cache.
func New() *Cache {
	memo, err := lru.New(memoSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &Cache{
		memo:  memo,
		known: make(map[reflect.Type]bool),
		edges: make(map[reflect.Type][]reflect.Type),
	}
}

// AddDeclared records a declared consumer event type. Interface types widen
// future lookups; concrete types are matched exactly and need no bookkeeping.
func (c *Cache) AddDeclared(t reflect.Type) {
	if t == nil || t.Kind() != reflect.Interface {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.known[t] {
		return
	}
	c.known[t] = true
	c.ifaces = append(c.ifaces, t)
	c.memo.Purge()
}

// Relate records an explicit widening edge: payloads of type sub also reach
// consumers declared for super. Edges compose transitively.
func (c *Cache) Relate(sub, super reflect.Type) {
	if sub == nil || super == nil || sub == super {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.edges[sub] {
		if existing == super {
			return
		}
	}
	c.edges[sub] = append(c.edges[sub], super)
	c.memo.Purge()
}

// Lookup returns the frozen widened type list for payload type t.
// Callers must not mutate the returned slice.
func (c *Cache) Lookup(t reflect.Type) []reflect.Type {
	if t == nil {
		return nil
	}
	if cached, ok := c.memo.Get(t); ok {
		return cached.([]reflect.Type)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Recheck: another goroutine may have computed it while we waited.
	if cached, ok := c.memo.Get(t); ok {
		return cached.([]reflect.Type)
	}
	types := c.computeLocked(t)
	c.memo.Add(t, types)
	return types
}

func (c *Cache) computeLocked(t reflect.Type) []reflect.Type {
	types := []reflect.Type{t}
	seen := map[reflect.Type]bool{t: true}

	// Explicit supertype closure, breadth-first in registration order.
	for i := 0; i < len(types); i++ {
		for _, super := range c.edges[types[i]] {
			if !seen[super] {
				seen[super] = true
				types = append(types, super)
			}
		}
	}

	// Declared interfaces the payload type implements, then the closure of
	// any edges declared on those interfaces.
	for _, iface := range c.ifaces {
		if !seen[iface] && t.Implements(iface) {
			seen[iface] = true
			types = append(types, iface)
			for i := len(types) - 1; i < len(types); i++ {
				for _, super := range c.edges[types[i]] {
					if !seen[super] {
						seen[super] = true
						types = append(types, super)
					}
				}
			}
		}
	}
	return types
}
