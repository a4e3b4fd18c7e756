// Package odgate contains the on-demand ordering [Gate].
//
// The gate sits between clients submitting transaction batches
// and the consensus engine that completes rounds.
// Clients call [*Gate.PropagateBatch] from any number of goroutines;
// the consensus engine sends [odtypes.RoundEvent] values on a channel.
// A single kernel goroutine owns the current round and the pending-batch cache,
// and handles both kinds of input one at a time,
// so every propagation and every round transition
// observes a consistent view of the other.
//
// For every round event, the gate publishes exactly one proposal
// to its subscribers: the proposal pulled from the remote transport if present,
// or otherwise an empty proposal from the configured factory.
//
// Batches sent in a round remain in the cache until a block event commits them.
// On every round event, uncommitted batches move to the cache's front generation
// and are resent with the next propagated batch.
package odgate
