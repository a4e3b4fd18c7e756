package odgate

import (
	"context"
	"sync"

	"github.com/gordian-engine/gordering/od/odtypes"
)

// Subscription receives every proposal the gate publishes
// after the subscription was created.
//
// The gate blocks publication until every active subscriber
// has accepted the proposal, so subscribers must keep reading
// from Proposals or call Cancel.
type Subscription struct {
	b *broadcaster

	ch   chan odtypes.Proposal
	done chan struct{}

	cancelOnce sync.Once
}

// Proposals returns the channel of published proposals.
// The channel is closed once the gate stops.
// If s is canceled before the gate stops, its channel is never closed.
func (s *Subscription) Proposals() <-chan odtypes.Proposal {
	return s.ch
}

// Cancel detaches s from the gate.
// Proposals published after Cancel returns are not delivered to s.
// It is safe to call Cancel multiple times.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.done)
		s.b.remove(s)
	})
}

// broadcaster fans out published proposals to subscribers, in order.
type broadcaster struct {
	bufSize int

	mu      sync.Mutex
	subs    []*Subscription
	stopped bool
}

func newBroadcaster(bufSize int) *broadcaster {
	return &broadcaster{bufSize: bufSize}
}

func (b *broadcaster) Subscribe() *Subscription {
	s := &Subscription{
		b:    b,
		ch:   make(chan odtypes.Proposal, b.bufSize),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		close(s.ch)
		return s
	}

	b.subs = append(b.subs, s)
	return s
}

func (b *broadcaster) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers p to every current subscriber,
// blocking until each has accepted it or has been canceled.
// It returns false if ctx is canceled first.
//
// Publish must only be called from a single goroutine.
func (b *broadcaster) Publish(ctx context.Context, p odtypes.Proposal) bool {
	b.mu.Lock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- p:
		case <-s.done:
			// Canceled while we were delivering; skip it.
		case <-ctx.Done():
			return false
		}
	}

	return true
}

// Stop closes the channel of every subscriber not yet canceled.
// Subscriptions created after Stop receive an already-closed channel.
// Stop must be called from the same goroutine as Publish, after the final Publish.
func (b *broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}
