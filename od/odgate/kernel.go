package odgate

import (
	"context"
	"log/slog"
	"runtime/trace"
	"time"

	"github.com/gordian-engine/gordering/od/odcache"
	"github.com/gordian-engine/gordering/od/odtransport"
	"github.com/gordian-engine/gordering/od/odtypes"
)

type propagateRequest struct {
	Batch odtypes.Batch

	// Closed by the kernel once the batch has been sent and cached.
	Done chan struct{}
}

type snapshotRequest struct {
	Resp chan Snapshot
}

// kernel owns all mutable gate state.
// Its fields are only accessed from the mainLoop goroutine.
type kernel struct {
	log *slog.Logger

	rounds roundTracker
	cache  odcache.Cache

	transport odtransport.Transport
	os        odtransport.OrderingService
	factory   odtransport.ProposalFactory

	roundEvents       <-chan odtypes.RoundEvent
	propagateRequests <-chan propagateRequest
	snapshotRequests  <-chan snapshotRequest

	bc *broadcaster

	m gateMetrics

	slowPull time.Duration

	markStopped context.CancelCauseFunc
	done        chan<- struct{}
}

func (k *kernel) mainLoop(ctx context.Context) {
	ctx, task := trace.NewTask(ctx, "odgate.kernel.mainLoop")
	defer task.End()

	defer close(k.done)
	defer k.markStopped(ErrGateStopped)
	defer k.bc.Stop()

	for {
		select {
		case <-ctx.Done():
			k.log.Info(
				"Stopping due to context cancellation",
				"cause", context.Cause(ctx),
			)
			return

		case ev, ok := <-k.roundEvents:
			if !ok {
				k.log.Info("Stopping due to round event channel closed")
				return
			}
			if ev == nil {
				k.log.Error("Dropping nil round event")
				continue
			}
			if !k.handleRoundEvent(ctx, ev) {
				return
			}

		case req := <-k.propagateRequests:
			k.handlePropagate(ctx, req)

		case req := <-k.snapshotRequests:
			// Resp is 1-buffered.
			req.Resp <- Snapshot{
				Round: k.rounds.Current(),
				Front: k.cache.Front(),
				Back:  k.cache.Back(),
			}
		}
	}
}

func (k *kernel) handlePropagate(ctx context.Context, req propagateRequest) {
	defer trace.StartRegion(ctx, "handlePropagate").End()
	defer close(req.Done)

	pending := k.cache.ClearFrontAndGet()
	outgoing := odtypes.DedupBatches(pending, []odtypes.Batch{req.Batch})
	k.cache.AddToBack(outgoing)

	round := k.rounds.Current()
	k.transport.Push(ctx, round, outgoing)

	k.m.BatchesPropagated.Inc(1)
	k.m.BatchesSent.Inc(int64(len(outgoing)))
	k.m.CacheSize.Update(int64(k.cache.Len()))

	k.log.Debug(
		"Propagated batch",
		"round", round,
		"batch", req.Batch.Hash,
		"n_resent", len(outgoing)-1,
	)
}

// handleRoundEvent advances the round, updates the cache,
// and publishes exactly one proposal for the new round.
// It returns false if ctx was canceled before the proposal was published.
func (k *kernel) handleRoundEvent(ctx context.Context, ev odtypes.RoundEvent) bool {
	defer trace.StartRegion(ctx, "handleRoundEvent").End()

	round := k.rounds.Advance(ev)

	k.cache.Up()
	if be, ok := ev.(odtypes.BlockEvent); ok {
		k.cache.Remove(be.Committed)
		k.m.RoundsBlock.Inc(1)
	} else {
		k.m.RoundsEmpty.Inc(1)
	}
	k.m.CacheSize.Update(int64(k.cache.Len()))

	k.os.OnRoundAdvanced(ctx, round)

	start := time.Now()
	p, ok := k.transport.Pull(ctx, round)
	dur := time.Since(start)
	k.m.PullDuration.Update(int64(dur))
	if k.slowPull > 0 && dur > k.slowPull {
		k.log.Warn(
			"Proposal pull was slow",
			"round", round,
			"dur", dur,
			"threshold", k.slowPull,
		)
	}

	if ok {
		if p.Round != round {
			k.log.Warn(
				"Remote proposal round mismatch; publishing anyway",
				"round", round,
				"proposal_round", p.Round,
			)
		}
		k.m.ProposalsRemote.Inc(1)
	} else {
		p = k.factory.CreateEmptyProposal(round)
		k.m.ProposalsFallback.Inc(1)
	}

	k.log.Debug(
		"Publishing proposal",
		"round", round,
		"remote", ok,
		"n_batches", len(p.Batches),
		"cache_size", k.cache.Len(),
	)

	return k.bc.Publish(ctx, p)
}
