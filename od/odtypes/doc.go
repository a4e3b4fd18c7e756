// Package odtypes (On-Demand ordering TYPES) contains the value types
// shared across the on-demand ordering packages:
// the [Round] counter pair, the hash-identified [Batch],
// the per-round [Proposal], and the [RoundEvent] variants
// emitted by the consensus engine when a round completes.
//
// Values in this package are treated as immutable once constructed.
// Slices held by a [Batch] or a [Proposal] may be shared between goroutines,
// so callers must not modify them after handing them off.
package odtypes
