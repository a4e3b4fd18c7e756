package odtypes

// RoundEvent is emitted by the consensus engine when a round completes.
// The only implementations are [BlockEvent] and [EmptyEvent].
type RoundEvent interface {
	isRoundEvent()
}

// BlockEvent reports that a block committed,
// advancing the block round to Round and finalizing the Committed batches.
//
// Round is authoritative and may skip values.
type BlockEvent struct {
	Round     Round
	Committed []Batch
}

// EmptyEvent reports that the current round was rejected without a block.
// It carries no round; the receiver computes the next round itself.
type EmptyEvent struct{}

func (BlockEvent) isRoundEvent() {}
func (EmptyEvent) isRoundEvent() {}
