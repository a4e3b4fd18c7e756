package odtypes

import (
	"cmp"
	"fmt"
)

// Round identifies one attempt at agreeing on a block.
//
// BlockRound only increases when a block commits.
// RejectRound increases when a round completes without a block,
// at the same BlockRound.
type Round struct {
	BlockRound  uint64
	RejectRound uint64
}

// Compare returns -1, 0, or 1 depending on whether r sorts before, equal to,
// or after o, ordering lexicographically by (BlockRound, RejectRound).
func (r Round) Compare(o Round) int {
	if c := cmp.Compare(r.BlockRound, o.BlockRound); c != 0 {
		return c
	}
	return cmp.Compare(r.RejectRound, o.RejectRound)
}

// Less reports whether r sorts strictly before o.
func (r Round) Less(o Round) bool {
	return r.Compare(o) < 0
}

// NextReject returns the round following r when r completes without a block.
func (r Round) NextReject() Round {
	return Round{
		BlockRound:  r.BlockRound,
		RejectRound: r.RejectRound + 1,
	}
}

func (r Round) String() string {
	return fmt.Sprintf("(%d, %d)", r.BlockRound, r.RejectRound)
}
