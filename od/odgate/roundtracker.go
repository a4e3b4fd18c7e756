package odgate

import (
	"fmt"
	"log/slog"

	"github.com/gordian-engine/gordering/od/odtypes"
)

// roundTracker holds the gate's current round
// and applies the two round update rules.
type roundTracker struct {
	log *slog.Logger

	cur odtypes.Round
}

// Advance updates the current round according to ev and returns the new round.
//
// The consensus engine is authoritative for block round advancement,
// so a BlockEvent's round replaces the current round verbatim,
// even if it skips values or moves backwards.
// The gate is authoritative for rejected rounds,
// so an EmptyEvent increments only the reject round.
func (t *roundTracker) Advance(ev odtypes.RoundEvent) odtypes.Round {
	switch ev := ev.(type) {
	case odtypes.BlockEvent:
		if !t.cur.Less(ev.Round) {
			t.log.Warn(
				"Block event did not advance round; accepting as given",
				"cur_round", t.cur,
				"event_round", ev.Round,
			)
		}
		t.cur = ev.Round
	case odtypes.EmptyEvent:
		t.cur = t.cur.NextReject()
	default:
		panic(fmt.Errorf("BUG: unhandled round event type %T", ev))
	}

	return t.cur
}

// Current returns the current round.
func (t *roundTracker) Current() odtypes.Round {
	return t.cur
}
