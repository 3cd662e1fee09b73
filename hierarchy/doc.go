// Package hierarchy decides which declared event types a payload reaches.
//
// Go has no superclass chain, so widening is built from the two hierarchy
// mechanisms Go does have:
//
//   - Interface satisfaction: a consumer may declare an interface as its
//     event type; any payload whose type implements the interface matches.
//   - Explicit edges: Relate records a "subtype → supertype" relation for
//     cases where two concrete types should share consumers.
//
// For a payload type T, Lookup returns the deterministic, deduplicated list
//
//	[T, explicit supertypes (transitive, registration order),
//	    declared interface types T implements (registration order)]
//
// The list is frozen on first computation and memoized through a bounded LRU;
// recomputation is deterministic, so eviction never changes results. Declaring
// a new interface event type or a new edge invalidates the memo.
//
// All methods are safe for concurrent use.
package hierarchy
