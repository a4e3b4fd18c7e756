// Package odtransport declares the collaborators the ordering gate depends on:
// the remote [Transport] that carries batches out and proposals back in,
// the local [OrderingService] notified of round advancement,
// and the [ProposalFactory] used when the network yields no proposal.
//
// The wire format is the concern of concrete implementations,
// such as [github.com/gordian-engine/gordering/od/odtransport/odlibp2p].
package odtransport

import (
	"context"

	"github.com/gordian-engine/gordering/od/odtypes"
)

// Transport carries batches to, and proposals from, the remote ordering service.
type Transport interface {
	// Push sends batches for inclusion in round.
	// The caller does not wait for any acknowledgement;
	// delivery failures are logged by the implementation and otherwise dropped.
	Push(ctx context.Context, round odtypes.Round, batches []odtypes.Batch)

	// Pull requests the proposal for round.
	// The boolean result is false when no proposal is available,
	// including when the request timed out or the transport failed.
	//
	// Implementations must bound the time spent in Pull.
	Pull(ctx context.Context, round odtypes.Round) (odtypes.Proposal, bool)
}

// OrderingService is notified when collaboration advances to a new round.
type OrderingService interface {
	OnRoundAdvanced(ctx context.Context, round odtypes.Round)
}

// ProposalFactory synthesizes the degenerate proposal
// published for a round the network produced no proposal for.
// It must always return a proposal.
type ProposalFactory interface {
	CreateEmptyProposal(round odtypes.Round) odtypes.Proposal
}

// ProposalServer is the side of an ordering service
// that answers remote transports.
//
// A [Transport] implementation delivers pushed batches to OnBatches,
// and answers pulls with RequestProposal.
type ProposalServer interface {
	OnBatches(ctx context.Context, round odtypes.Round, batches []odtypes.Batch)
	RequestProposal(ctx context.Context, round odtypes.Round) (odtypes.Proposal, bool)
}

// OrderingServiceFunc allows converting a standalone function
// into an [OrderingService].
type OrderingServiceFunc func(context.Context, odtypes.Round)

// OnRoundAdvanced implements [OrderingService].
func (f OrderingServiceFunc) OnRoundAdvanced(ctx context.Context, round odtypes.Round) {
	f(ctx, round)
}

// ProposalFactoryFunc allows converting a standalone function
// into a [ProposalFactory].
type ProposalFactoryFunc func(odtypes.Round) odtypes.Proposal

// CreateEmptyProposal implements [ProposalFactory].
func (f ProposalFactoryFunc) CreateEmptyProposal(round odtypes.Round) odtypes.Proposal {
	return f(round)
}
