// Package odtransporttest contains mock implementations
// of the odtransport interfaces, for use in tests.
package odtransporttest

import (
	"context"

	"github.com/gordian-engine/gordering/od/odtransport"
	"github.com/gordian-engine/gordering/od/odtypes"
	"github.com/stretchr/testify/mock"
)

// MockTransport is a testify mock of [odtransport.Transport].
type MockTransport struct {
	mock.Mock
}

var _ odtransport.Transport = (*MockTransport)(nil)

func (m *MockTransport) Push(ctx context.Context, round odtypes.Round, batches []odtypes.Batch) {
	m.Called(ctx, round, batches)
}

func (m *MockTransport) Pull(ctx context.Context, round odtypes.Round) (odtypes.Proposal, bool) {
	args := m.Called(ctx, round)
	return args.Get(0).(odtypes.Proposal), args.Bool(1)
}

// MockOrderingService is a testify mock of [odtransport.OrderingService].
type MockOrderingService struct {
	mock.Mock
}

var _ odtransport.OrderingService = (*MockOrderingService)(nil)

func (m *MockOrderingService) OnRoundAdvanced(ctx context.Context, round odtypes.Round) {
	m.Called(ctx, round)
}

// MockProposalFactory is a testify mock of [odtransport.ProposalFactory].
type MockProposalFactory struct {
	mock.Mock
}

var _ odtransport.ProposalFactory = (*MockProposalFactory)(nil)

func (m *MockProposalFactory) CreateEmptyProposal(round odtypes.Round) odtypes.Proposal {
	args := m.Called(round)
	return args.Get(0).(odtypes.Proposal)
}
