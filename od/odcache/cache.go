// Package odcache contains the pending-batch cache used by the ordering gate.
//
// The cache keeps two generations of batches that were sent to the ordering
// service but have not yet been seen in a committed block.
// The back generation holds batches sent during the most recent unresolved
// round, and the front generation holds batches sent in an earlier round.
// On each round transition, the gate moves back into front with [Cache.Up],
// and removes whatever the committed block finalized with [Cache.Remove].
// When a new batch is propagated, the front generation is drained
// with [Cache.ClearFrontAndGet] and resent alongside the new batch.
package odcache

import "github.com/gordian-engine/gordering/od/odtypes"

// Cache is the two-generation retention window for pending batches.
//
// A batch is present in at most one generation at a time.
// Implementations are not required to be safe for concurrent use;
// the ordering gate serializes all access.
type Cache interface {
	// AddToBack unions batches into the back generation, deduplicated by hash.
	// Batches already present in either generation are left where they are.
	AddToBack(batches []odtypes.Batch)

	// Up moves every batch in the back generation to the end of the front generation.
	Up()

	// ClearFrontAndGet returns the front generation in insertion order
	// and leaves the front generation empty.
	ClearFrontAndGet() []odtypes.Batch

	// Remove deletes batches from both generations.
	// Batches not present in the cache are ignored.
	Remove(batches []odtypes.Batch)

	// Front and Back return copies of the respective generation,
	// in insertion order.
	Front() []odtypes.Batch
	Back() []odtypes.Batch

	// Len reports the total number of batches across both generations.
	Len() int
}
