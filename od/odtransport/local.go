package odtransport

import (
	"context"

	"github.com/gordian-engine/gordering/od/odtypes"
)

// Local is a [Transport] that calls a [ProposalServer] in the same process.
//
// It is used when the node's own ordering service is the ordering peer,
// such as in a single-node devnet.
type Local struct {
	Server ProposalServer
}

var _ Transport = Local{}

// Push implements [Transport].
func (l Local) Push(ctx context.Context, round odtypes.Round, batches []odtypes.Batch) {
	l.Server.OnBatches(ctx, round, batches)
}

// Pull implements [Transport].
func (l Local) Pull(ctx context.Context, round odtypes.Round) (odtypes.Proposal, bool) {
	return l.Server.RequestProposal(ctx, round)
}
