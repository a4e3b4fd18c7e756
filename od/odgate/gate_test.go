package odgate_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/gordian-engine/gordering/internal/gtest"
	"github.com/gordian-engine/gordering/od/odgate"
	"github.com/gordian-engine/gordering/od/odtransport/odtransporttest"
	"github.com/gordian-engine/gordering/od/odtypes"
	"github.com/stretchr/testify/require"
)

func TestNew_validation(t *testing.T) {
	t.Parallel()

	_, err := odgate.New(t.Context(), gtest.NewLogger(t), odgate.Config{})
	require.Error(t, err)
	require.ErrorContains(t, err, "transport required")
	require.ErrorContains(t, err, "ordering service required")
	require.ErrorContains(t, err, "proposal factory required")
	require.ErrorContains(t, err, "round events channel required")
}

func TestGate_roundComputation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.Config.InitialRound = odtypes.Round{BlockRound: 5, RejectRound: 2}

	g := f.NewGate(t, t.Context())
	sub := g.Subscribe()

	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.EmptyEvent{}))
	p := gtest.ReceiveSoon(t, sub.Proposals())
	require.Equal(t, odtypes.Round{BlockRound: 5, RejectRound: 3}, p.Round)

	// Block round is taken verbatim, not incremented.
	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.BlockEvent{
		Round: odtypes.Round{BlockRound: 6, RejectRound: 1},
	}))
	p = gtest.ReceiveSoon(t, sub.Proposals())
	require.Equal(t, odtypes.Round{BlockRound: 6, RejectRound: 1}, p.Round)

	// Block rounds may skip values.
	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.BlockEvent{
		Round: odtypes.Round{BlockRound: 9, RejectRound: 4},
	}))
	p = gtest.ReceiveSoon(t, sub.Proposals())
	require.Equal(t, odtypes.Round{BlockRound: 9, RejectRound: 4}, p.Round)

	// An older block round is accepted as given.
	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.BlockEvent{
		Round: odtypes.Round{BlockRound: 7, RejectRound: 1},
	}))
	p = gtest.ReceiveSoon(t, sub.Proposals())
	require.Equal(t, odtypes.Round{BlockRound: 7, RejectRound: 1}, p.Round)

	require.Equal(t, []odtypes.Round{
		{BlockRound: 5, RejectRound: 3},
		{BlockRound: 6, RejectRound: 1},
		{BlockRound: 9, RejectRound: 4},
		{BlockRound: 7, RejectRound: 1},
	}, f.Advanced())
	require.Equal(t, f.Advanced(), f.Transport.Pulls())
}

func TestGate_propagate_mergesFront(t *testing.T) {
	t.Parallel()

	f := newFixture()
	b1, b2 := batch("b1"), batch("b2")

	// Put b2 in the front generation before the gate takes ownership.
	f.Cache.AddToBack([]odtypes.Batch{b2})
	f.Cache.Up()

	g := f.NewGate(t, t.Context())
	require.NoError(t, g.PropagateBatch(t.Context(), b1))

	pushes := f.Transport.Pushes()
	require.Len(t, pushes, 1)
	require.Equal(t, initialRound, pushes[0].Round)
	require.ElementsMatch(t, []odtypes.Batch{b1, b2}, pushes[0].Batches)

	snap, err := g.Snapshot(t.Context())
	require.NoError(t, err)
	require.Equal(t, initialRound, snap.Round)
	require.Empty(t, snap.Front)
	require.ElementsMatch(t, []odtypes.Batch{b1, b2}, snap.Back)
}

func TestGate_propagate_duplicateBatch(t *testing.T) {
	t.Parallel()

	f := newFixture()
	b1 := batch("b1")

	// b1 is already pending in front, and is submitted again.
	f.Cache.AddToBack([]odtypes.Batch{b1})
	f.Cache.Up()

	g := f.NewGate(t, t.Context())
	require.NoError(t, g.PropagateBatch(t.Context(), b1))

	pushes := f.Transport.Pushes()
	require.Len(t, pushes, 1)
	require.Equal(t, []odtypes.Batch{b1}, pushes[0].Batches)

	snap, err := g.Snapshot(t.Context())
	require.NoError(t, err)
	require.Equal(t, []odtypes.Batch{b1}, snap.Back)
}

func TestGate_fallbackProposal(t *testing.T) {
	t.Parallel()

	f := newFixture()
	g := f.NewGate(t, t.Context())
	sub := g.Subscribe()

	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.EmptyEvent{}))

	want := f.Factory.CreateEmptyProposal(initialRound.NextReject())
	require.Equal(t, want, gtest.ReceiveSoon(t, sub.Proposals()))
	gtest.NotSending(t, sub.Proposals())

	require.Equal(t, int64(1), counter(g, odgate.MetricProposalsFallback))
	require.Zero(t, counter(g, odgate.MetricProposalsRemote))
}

func TestGate_endToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture()
	b1, b2 := batch("b1"), batch("b2")

	g := f.NewGate(t, t.Context())
	sub := g.Subscribe()

	// Client submits b1 in the initial round.
	require.NoError(t, g.PropagateBatch(t.Context(), b1))
	require.Equal(t, []odtransporttest.Push{
		{Round: initialRound, Batches: []odtypes.Batch{b1}},
	}, f.Transport.Pushes())

	// Round rejected; no proposal on the network.
	r22 := odtypes.Round{BlockRound: 2, RejectRound: 2}
	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.EmptyEvent{}))
	require.Equal(t, f.Factory.CreateEmptyProposal(r22), gtest.ReceiveSoon(t, sub.Proposals()))

	// Client submits b2; b1 is still unresolved and goes along with it.
	require.NoError(t, g.PropagateBatch(t.Context(), b2))
	pushes := f.Transport.Pushes()
	require.Len(t, pushes, 2)
	require.Equal(t, r22, pushes[1].Round)
	require.ElementsMatch(t, []odtypes.Batch{b1, b2}, pushes[1].Batches)

	// Both commit; the network has a proposal for the next round.
	r31 := odtypes.Round{BlockRound: 3, RejectRound: 1}
	remote := odtypes.Proposal{Round: r31, Batches: []odtypes.Batch{batch("other")}}
	f.Transport.SetProposal(remote)

	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.BlockEvent{
		Round:     r31,
		Committed: []odtypes.Batch{b1, b2},
	}))
	require.Equal(t, remote, gtest.ReceiveSoon(t, sub.Proposals()))

	snap, err := g.Snapshot(t.Context())
	require.NoError(t, err)
	require.Equal(t, r31, snap.Round)
	require.Empty(t, snap.Front)
	require.Empty(t, snap.Back)

	require.Equal(t, []odtypes.Round{r22, r31}, f.Advanced())
	require.Equal(t, []odtypes.Round{r22, r31}, f.Transport.Pulls())
}

func TestGate_batchSurvivesRejectedRounds(t *testing.T) {
	t.Parallel()

	f := newFixture()
	b1, b2, b3 := batch("b1"), batch("b2"), batch("b3")

	g := f.NewGate(t, t.Context())
	sub := g.Subscribe()

	reject := func() {
		t.Helper()
		gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.EmptyEvent{}))
		_ = gtest.ReceiveSoon(t, sub.Proposals())
	}

	require.NoError(t, g.PropagateBatch(t.Context(), b1))
	reject()
	reject()

	// b1 sat through two rejected rounds without a new propagation;
	// it is still in front and goes out with b2.
	snap, err := g.Snapshot(t.Context())
	require.NoError(t, err)
	require.Equal(t, []odtypes.Batch{b1}, snap.Front)

	require.NoError(t, g.PropagateBatch(t.Context(), b2))
	pushes := f.Transport.Pushes()
	require.Equal(t, []odtypes.Batch{b1, b2}, pushes[len(pushes)-1].Batches)

	// A block commits only b2. b1 remains pending.
	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.BlockEvent{
		Round:     odtypes.Round{BlockRound: 3, RejectRound: 1},
		Committed: []odtypes.Batch{b2},
	}))
	_ = gtest.ReceiveSoon(t, sub.Proposals())

	require.NoError(t, g.PropagateBatch(t.Context(), b3))
	pushes = f.Transport.Pushes()
	require.Equal(t, []odtypes.Batch{b1, b3}, pushes[len(pushes)-1].Batches)
}

func TestGate_committedNotResurrected(t *testing.T) {
	t.Parallel()

	f := newFixture()
	b1, b2 := batch("b1"), batch("b2")

	g := f.NewGate(t, t.Context())
	sub := g.Subscribe()

	require.NoError(t, g.PropagateBatch(t.Context(), b1))

	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.EmptyEvent{}))
	_ = gtest.ReceiveSoon(t, sub.Proposals())

	// b1 is in front now, and is committed.
	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.BlockEvent{
		Round:     odtypes.Round{BlockRound: 3, RejectRound: 1},
		Committed: []odtypes.Batch{b1},
	}))
	_ = gtest.ReceiveSoon(t, sub.Proposals())

	require.NoError(t, g.PropagateBatch(t.Context(), b2))
	pushes := f.Transport.Pushes()
	require.Equal(t, []odtypes.Batch{b2}, pushes[len(pushes)-1].Batches)
}

// Randomized sequences of propagations and round events
// check that no pending batch is ever dropped from the cache,
// and that committed batches are never pushed again.
func TestGate_randomSequences(t *testing.T) {
	t.Parallel()

	for seed := uint64(1); seed <= 8; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			t.Parallel()

			rng := rand.New(rand.NewPCG(seed, seed*7919))

			f := newFixture()
			g := f.NewGate(t, t.Context())
			sub := g.Subscribe()

			var (
				next      int
				submitted []odtypes.Batch
				// Number of pushes recorded when each batch was committed.
				committed = make(map[odtypes.BatchHash]int)
				blockR    = initialRound.BlockRound
			)

			for range 200 {
				switch n := rng.IntN(10); {
				case n < 6:
					b := batch(fmt.Sprintf("b%d", next))
					next++
					submitted = append(submitted, b)
					require.NoError(t, g.PropagateBatch(t.Context(), b))

				case n < 8:
					gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.EmptyEvent{}))
					_ = gtest.ReceiveSoon(t, sub.Proposals())

				default:
					// Commit a random subset of the pending batches.
					snap, err := g.Snapshot(t.Context())
					require.NoError(t, err)

					var toCommit []odtypes.Batch
					for _, b := range append(snap.Front, snap.Back...) {
						if rng.IntN(2) == 0 {
							toCommit = append(toCommit, b)
							committed[b.Hash] = len(f.Transport.Pushes())
						}
					}

					blockR++
					gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.BlockEvent{
						Round:     odtypes.Round{BlockRound: blockR, RejectRound: 1},
						Committed: toCommit,
					}))
					_ = gtest.ReceiveSoon(t, sub.Proposals())
				}
			}

			// No resurrection: once a batch is committed,
			// no later push contains it.
			pushes := f.Transport.Pushes()
			for h, n := range committed {
				for _, p := range pushes[n:] {
					for _, b := range p.Batches {
						require.NotEqual(t, h, b.Hash, "batch %s pushed after commit", h)
					}
				}
			}

			// Pushes never go back in round.
			for i := 1; i < len(pushes); i++ {
				require.False(t, pushes[i].Round.Less(pushes[i-1].Round))
			}

			// No loss: every submitted batch that was not committed
			// is still held by the cache.
			snap, err := g.Snapshot(t.Context())
			require.NoError(t, err)
			held := hashSet(append(snap.Front, snap.Back...))
			for _, b := range submitted {
				_, isCommitted := committed[b.Hash]
				_, isHeld := held[b.Hash]
				require.NotEqual(t, isCommitted, isHeld, "batch %s", b.Hash)
			}
		})
	}
}

func TestGate_concurrentPropagation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	g := f.NewGate(t, t.Context())
	sub := g.Subscribe()

	const nWorkers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := range nWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				b := batch(fmt.Sprintf("w%d-%d", w, i))
				if err := g.PropagateBatch(t.Context(), b); err != nil {
					t.Errorf("propagate: %v", err)
					return
				}
			}
		}()
	}

	// Interleave rejected rounds with the propagations.
	const nEvents = 10
	for range nEvents {
		gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.EmptyEvent{}))
		_ = gtest.ReceiveSoon(t, sub.Proposals())
	}

	wg.Wait()

	// Every batch was pushed at least once, and is still pending.
	pushed := make(map[odtypes.BatchHash]struct{})
	for _, p := range f.Transport.Pushes() {
		for _, b := range p.Batches {
			pushed[b.Hash] = struct{}{}
		}
	}
	require.Len(t, pushed, nWorkers*perWorker)

	snap, err := g.Snapshot(t.Context())
	require.NoError(t, err)
	require.Len(t, hashSet(append(snap.Front, snap.Back...)), nWorkers*perWorker)
	require.Equal(t, odtypes.Round{BlockRound: 2, RejectRound: 1 + nEvents}, snap.Round)

	require.Equal(t, int64(nWorkers*perWorker), counter(g, odgate.MetricBatchesPropagated))
	require.Equal(t, int64(nEvents), counter(g, odgate.MetricRoundsEmpty))
}

func TestGate_multipleSubscribers(t *testing.T) {
	t.Parallel()

	f := newFixture()
	g := f.NewGate(t, t.Context())

	s1 := g.Subscribe()
	s2 := g.Subscribe()
	canceled := g.Subscribe()
	canceled.Cancel()
	canceled.Cancel() // Idempotent.

	for i := range 3 {
		gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.EmptyEvent{}))

		want := odtypes.Round{BlockRound: 2, RejectRound: uint64(2 + i)}
		require.Equal(t, want, gtest.ReceiveSoon(t, s1.Proposals()).Round)
		require.Equal(t, want, gtest.ReceiveSoon(t, s2.Proposals()).Round)
	}

	gtest.NotSending(t, canceled.Proposals())
}

func TestGate_nilRoundEventIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture()
	g := f.NewGate(t, t.Context())
	sub := g.Subscribe()

	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(nil))
	gtest.NotSending(t, sub.Proposals())

	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.EmptyEvent{}))
	p := gtest.ReceiveSoon(t, sub.Proposals())
	require.Equal(t, initialRound.NextReject(), p.Round)

	snap, err := g.Snapshot(t.Context())
	require.NoError(t, err)
	require.Equal(t, initialRound.NextReject(), snap.Round)
}

func TestGate_stop(t *testing.T) {
	t.Parallel()

	t.Run("closing round events", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		g := f.NewGate(t, t.Context())
		sub := g.Subscribe()

		close(f.Events)
		g.Wait()

		_, ok := <-sub.Proposals()
		require.False(t, ok)

		require.ErrorIs(t, g.PropagateBatch(t.Context(), batch("late")), odgate.ErrGateStopped)

		_, err := g.Snapshot(t.Context())
		require.ErrorIs(t, err, odgate.ErrGateStopped)

		_, ok = <-g.Subscribe().Proposals()
		require.False(t, ok)
	})

	t.Run("canceled subscription stays open", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		g := f.NewGate(t, t.Context())
		sub := g.Subscribe()
		sub.Cancel()

		close(f.Events)
		g.Wait()

		gtest.NotSending(t, sub.Proposals())
	})

	t.Run("context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		f := newFixture()
		g := f.NewGate(t, ctx)

		cancel()
		g.Wait()

		require.ErrorIs(t, g.PropagateBatch(t.Context(), batch("late")), odgate.ErrGateStopped)

		// Snapshot must not block on the stopped kernel,
		// even though the caller's context is never canceled.
		snapErr := make(chan error, 1)
		go func() {
			_, err := g.Snapshot(context.WithoutCancel(t.Context()))
			snapErr <- err
		}()
		require.ErrorIs(t, gtest.ReceiveSoon(t, snapErr), odgate.ErrGateStopped)
	})

	t.Run("caller context canceled while kernel busy", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		g := f.NewGate(t, t.Context())

		// Fill the subscriber's buffer and one more,
		// so the kernel blocks publishing.
		_ = g.Subscribe()
		for range odgate.DefaultSubscriberBuffer + 1 {
			gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.EmptyEvent{}))
		}

		ctx, cancel := context.WithCancelCause(t.Context())
		cause := errors.New("giving up")
		cancel(cause)

		err := g.PropagateBatch(ctx, batch("never"))
		require.ErrorIs(t, err, cause)
		require.Empty(t, f.Transport.Pushes())

		_, err = g.Snapshot(ctx)
		require.ErrorIs(t, err, cause)
	})
}

// Not parallel, so that goroutines from other tests
// do not show up as leaks.
func TestGate_noGoroutineLeak(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())

	f := newFixture()
	g, err := odgate.New(ctx, gtest.NewLogger(t), f.Config)
	require.NoError(t, err)

	sub := g.Subscribe()
	require.NoError(t, g.PropagateBatch(ctx, batch("b")))
	gtest.SendSoon(t, f.Events, odtypes.RoundEvent(odtypes.EmptyEvent{}))
	_ = gtest.ReceiveSoon(t, sub.Proposals())

	cancel()
	g.Wait()
}

func counter(g *odgate.Gate, name string) int64 {
	c, ok := g.Metrics().Get(name).(interface{ Count() int64 })
	if !ok {
		panic("no counter named " + name)
	}
	return c.Count()
}
