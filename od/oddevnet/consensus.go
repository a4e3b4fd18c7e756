// Package oddevnet contains a loopback [Consensus] driver
// for running an ordering gate without a real consensus engine.
//
// The driver treats every non-empty proposal as committed
// and every empty proposal as a rejected round.
// It is intended for local development and integration tests.
package oddevnet

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gordian-engine/gordering/internal/gchan"
	"github.com/gordian-engine/gordering/od/odtypes"
)

// Config configures a [Consensus].
type Config struct {
	// Proposals published by the gate, typically from a gate subscription.
	Proposals <-chan odtypes.Proposal

	// Round events sent back to the gate.
	RoundEvents chan<- odtypes.RoundEvent

	// Delay between receiving a proposal and emitting its outcome.
	RoundDelay time.Duration
}

// Consensus turns published proposals into round events.
type Consensus struct {
	log *slog.Logger

	proposals <-chan odtypes.Proposal
	events    chan<- odtypes.RoundEvent
	delay     time.Duration

	blocks, rejects atomic.Uint64

	done chan struct{}
}

// New starts a Consensus in a background goroutine associated with ctx.
//
// The first round event is an EmptyEvent sent after one RoundDelay,
// so that the gate publishes its first proposal.
func New(ctx context.Context, log *slog.Logger, cfg Config) *Consensus {
	c := &Consensus{
		log: log,

		proposals: cfg.Proposals,
		events:    cfg.RoundEvents,
		delay:     cfg.RoundDelay,

		done: make(chan struct{}),
	}

	go c.run(ctx)

	return c
}

// Wait blocks until the background goroutine has finished.
func (c *Consensus) Wait() {
	<-c.done
}

// Blocks returns the number of block events emitted so far.
func (c *Consensus) Blocks() uint64 {
	return c.blocks.Load()
}

// Rejects returns the number of empty events emitted so far.
func (c *Consensus) Rejects() uint64 {
	return c.rejects.Load()
}

func (c *Consensus) run(ctx context.Context) {
	defer close(c.done)

	if !c.sleep(ctx) {
		return
	}
	if !c.emit(ctx, odtypes.EmptyEvent{}) {
		return
	}

	for {
		p, ok := gchan.RecvC(ctx, c.log, c.proposals, "receiving proposal")
		if !ok {
			return
		}

		if !c.sleep(ctx) {
			return
		}

		var ev odtypes.RoundEvent
		if p.IsEmpty() {
			ev = odtypes.EmptyEvent{}
		} else {
			ev = odtypes.BlockEvent{
				Round: odtypes.Round{
					BlockRound:  p.Round.BlockRound + 1,
					RejectRound: 1,
				},
				Committed: p.Batches,
			}
			c.log.Info(
				"Committing proposal",
				"round", p.Round,
				"n_batches", len(p.Batches),
			)
		}

		if !c.emit(ctx, ev) {
			return
		}
	}
}

func (c *Consensus) emit(ctx context.Context, ev odtypes.RoundEvent) bool {
	if !gchan.SendC(ctx, c.log, c.events, ev, "sending round event") {
		return false
	}

	if _, ok := ev.(odtypes.BlockEvent); ok {
		c.blocks.Add(1)
	} else {
		c.rejects.Add(1)
	}
	return true
}

func (c *Consensus) sleep(ctx context.Context) bool {
	if c.delay <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(c.delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
