package odgate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gordian-engine/gordering/internal/gtest"
	"github.com/gordian-engine/gordering/od/odcache"
	"github.com/gordian-engine/gordering/od/odgate"
	"github.com/gordian-engine/gordering/od/odproposal"
	"github.com/gordian-engine/gordering/od/odtransport"
	"github.com/gordian-engine/gordering/od/odtransport/odtransporttest"
	"github.com/gordian-engine/gordering/od/odtypes"
	"github.com/stretchr/testify/require"
)

var initialRound = odtypes.Round{BlockRound: 2, RejectRound: 1}

var fixedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedNow() time.Time { return fixedTime }

// fixture wires a gate to a recording transport,
// a recording ordering service, and a real cache and factory.
type fixture struct {
	Transport *odtransporttest.RecordingTransport
	Cache     *odcache.TwoGen
	Factory   odproposal.EmptyFactory
	Events    chan odtypes.RoundEvent

	advancedMu sync.Mutex
	advanced   []odtypes.Round

	Config odgate.Config
}

func newFixture() *fixture {
	f := &fixture{
		Transport: odtransporttest.NewRecordingTransport(),
		Cache:     odcache.NewTwoGen(),
		Factory:   odproposal.EmptyFactory{Now: fixedNow},
		Events:    make(chan odtypes.RoundEvent),
	}

	f.Config = odgate.Config{
		InitialRound: initialRound,

		Transport:       f.Transport,
		OrderingService: odtransport.OrderingServiceFunc(f.recordAdvanced),
		Factory:         f.Factory,

		RoundEvents: f.Events,

		Cache: f.Cache,
	}

	return f
}

func (f *fixture) recordAdvanced(_ context.Context, r odtypes.Round) {
	f.advancedMu.Lock()
	defer f.advancedMu.Unlock()
	f.advanced = append(f.advanced, r)
}

func (f *fixture) Advanced() []odtypes.Round {
	f.advancedMu.Lock()
	defer f.advancedMu.Unlock()
	out := make([]odtypes.Round, len(f.advanced))
	copy(out, f.advanced)
	return out
}

// NewGate starts a gate from f.Config.
// The gate is stopped and waited on during test cleanup.
func (f *fixture) NewGate(t *testing.T, ctx context.Context) *odgate.Gate {
	t.Helper()

	ctx, cancel := context.WithCancel(ctx)

	g, err := odgate.New(ctx, gtest.NewLogger(t), f.Config)
	require.NoError(t, err)

	t.Cleanup(g.Wait)
	t.Cleanup(cancel)

	return g
}

func batch(name string) odtypes.Batch {
	return odtypes.NewBatch([]byte(name))
}

// hashSet is a convenience for comparing batch collections
// where order is not significant.
func hashSet(bs []odtypes.Batch) map[odtypes.BatchHash]struct{} {
	out := make(map[odtypes.BatchHash]struct{}, len(bs))
	for _, b := range bs {
		out[b.Hash] = struct{}{}
	}
	return out
}
