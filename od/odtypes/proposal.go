package odtypes

import "time"

// Proposal is the ordered collection of batches offered for inclusion in Round.
//
// A Proposal either arrives from the remote ordering service,
// or is synthesized locally with no batches when the network has none.
type Proposal struct {
	Round     Round
	CreatedAt time.Time

	Batches []Batch
}

// IsEmpty reports whether p carries no batches.
func (p Proposal) IsEmpty() bool {
	return len(p.Batches) == 0
}
