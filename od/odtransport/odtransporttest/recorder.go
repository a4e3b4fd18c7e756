package odtransporttest

import (
	"context"
	"sync"

	"github.com/gordian-engine/gordering/od/odtransport"
	"github.com/gordian-engine/gordering/od/odtypes"
)

// Push is a single call recorded by a [RecordingTransport].
type Push struct {
	Round   odtypes.Round
	Batches []odtypes.Batch
}

// RecordingTransport is a hand-written [odtransport.Transport]
// for tests that care about the full sequence of calls
// rather than individual expectations.
//
// Pull answers come from the Proposals map;
// a round without an entry reports no proposal.
type RecordingTransport struct {
	mu sync.Mutex

	pushes []Push
	pulls  []odtypes.Round

	proposals map[odtypes.Round]odtypes.Proposal
}

var _ odtransport.Transport = (*RecordingTransport)(nil)

// NewRecordingTransport returns an empty RecordingTransport.
func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{
		proposals: make(map[odtypes.Round]odtypes.Proposal),
	}
}

// SetProposal configures the result of a future Pull for p.Round.
func (t *RecordingTransport) SetProposal(p odtypes.Proposal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.proposals[p.Round] = p
}

func (t *RecordingTransport) Push(_ context.Context, round odtypes.Round, batches []odtypes.Batch) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := make([]odtypes.Batch, len(batches))
	copy(cp, batches)
	t.pushes = append(t.pushes, Push{Round: round, Batches: cp})
}

func (t *RecordingTransport) Pull(_ context.Context, round odtypes.Round) (odtypes.Proposal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pulls = append(t.pulls, round)
	p, ok := t.proposals[round]
	return p, ok
}

// Pushes returns a copy of the recorded pushes.
func (t *RecordingTransport) Pushes() []Push {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Push, len(t.pushes))
	copy(out, t.pushes)
	return out
}

// Pulls returns a copy of the rounds requested with Pull.
func (t *RecordingTransport) Pulls() []odtypes.Round {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]odtypes.Round, len(t.pulls))
	copy(out, t.pulls)
	return out
}
