// Package odproposal contains [odtransport.ProposalFactory] implementations.
package odproposal

import (
	"time"

	"github.com/gordian-engine/gordering/od/odtransport"
	"github.com/gordian-engine/gordering/od/odtypes"
)

// EmptyFactory creates proposals with no batches,
// stamped with the current time.
//
// The zero value is ready to use and reads the wall clock.
type EmptyFactory struct {
	// Now overrides the clock, for deterministic tests.
	Now func() time.Time
}

var _ odtransport.ProposalFactory = EmptyFactory{}

// CreateEmptyProposal implements [odtransport.ProposalFactory].
func (f EmptyFactory) CreateEmptyProposal(round odtypes.Round) odtypes.Proposal {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}

	return odtypes.Proposal{
		Round:     round,
		CreatedAt: now(),
	}
}
