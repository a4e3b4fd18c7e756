package odgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gordian-engine/gordering/internal/gchan"
	"github.com/gordian-engine/gordering/od/odtypes"
	"github.com/rcrowley/go-metrics"
)

// ErrGateStopped is returned from Gate methods
// called after the gate's kernel has stopped.
var ErrGateStopped = errors.New("gate stopped")

// Gate is the on-demand ordering gate.
// See the package documentation for an overview.
//
// Gate methods are safe to call concurrently.
type Gate struct {
	log *slog.Logger

	propagateRequests chan<- propagateRequest
	snapshotRequests  chan<- snapshotRequest

	bc *broadcaster

	reg metrics.Registry

	// Canceled with cause ErrGateStopped when the kernel stops.
	stopped context.Context

	done <-chan struct{}
}

// Snapshot is a point-in-time view of the gate's state.
type Snapshot struct {
	Round odtypes.Round

	// Batches sent in an earlier round still awaiting an outcome.
	Front []odtypes.Batch

	// Batches sent in the most recent unresolved round.
	Back []odtypes.Batch
}

// New returns a new Gate based on cfg.
//
// The gate runs a background goroutine associated with ctx.
// The gate stops when ctx is canceled or when cfg.RoundEvents is closed;
// call Wait to block until it has stopped.
func New(ctx context.Context, log *slog.Logger, cfg Config) (*Gate, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid gate config: %w", err)
	}
	cfg.setDefaults()

	propagateRequests := make(chan propagateRequest)
	snapshotRequests := make(chan snapshotRequest)
	done := make(chan struct{})
	stopped, markStopped := context.WithCancelCause(context.Background())

	bc := newBroadcaster(cfg.SubscriberBuffer)

	k := &kernel{
		log: log.With("g_sys", "kernel"),

		rounds: roundTracker{
			log: log.With("g_sys", "rounds"),
			cur: cfg.InitialRound,
		},
		cache: cfg.Cache,

		transport: cfg.Transport,
		os:        cfg.OrderingService,
		factory:   cfg.Factory,

		roundEvents:       cfg.RoundEvents,
		propagateRequests: propagateRequests,
		snapshotRequests:  snapshotRequests,

		bc: bc,

		m: newGateMetrics(cfg.Metrics),

		slowPull: cfg.SlowPullThreshold,

		markStopped: markStopped,
		done:        done,
	}

	g := &Gate{
		log: log,

		propagateRequests: propagateRequests,
		snapshotRequests:  snapshotRequests,

		bc: bc,

		reg: cfg.Metrics,

		stopped: stopped,
		done:    done,
	}

	go k.mainLoop(ctx)

	return g, nil
}

// Wait blocks until the gate's kernel has stopped.
func (g *Gate) Wait() {
	<-g.done
}

// PropagateBatch offers batch to the ordering service in the current round,
// together with any batches held over from an earlier unresolved round.
//
// PropagateBatch returns once the gate has sent the batches
// and recorded them in its cache.
// Transport failures are not reported;
// the batch stays in the cache and is resent on a later propagation
// if its round is rejected.
// The only errors returned are from ctx, or [ErrGateStopped].
func (g *Gate) PropagateBatch(ctx context.Context, batch odtypes.Batch) error {
	req := propagateRequest{
		Batch: batch,
		Done:  make(chan struct{}),
	}

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-g.done:
		return ErrGateStopped
	case g.propagateRequests <- req:
		// Okay.
	}

	select {
	case <-ctx.Done():
		// The kernel will still finish the request.
		return context.Cause(ctx)
	case <-g.done:
		return ErrGateStopped
	case <-req.Done:
		return nil
	}
}

// Subscribe returns a new subscription to published proposals.
func (g *Gate) Subscribe() *Subscription {
	return g.bc.Subscribe()
}

// Snapshot returns the gate's current round and cache contents.
func (g *Gate) Snapshot(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(g.stopped, func() {
		cancel(context.Cause(g.stopped))
	})
	defer stop()

	req := snapshotRequest{
		Resp: make(chan Snapshot, 1),
	}
	s, ok := gchan.ReqResp(
		ctx, g.log,
		g.snapshotRequests, req,
		req.Resp,
		"Snapshot",
	)
	if !ok {
		return Snapshot{}, context.Cause(ctx)
	}
	return s, nil
}

// Metrics returns the registry the gate reports to.
func (g *Gate) Metrics() metrics.Registry {
	return g.reg
}
