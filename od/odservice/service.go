// Package odservice contains an in-memory on-demand ordering [Service].
//
// The service collects batches pushed by ordering gates into a shared pool.
// When collaboration advances to a new round,
// the service cuts a proposal for that round from the front of the pool,
// and answers proposal requests for recently cut rounds.
//
// Batches cut into a proposal leave the pool.
// If the round is later rejected, the gates that submitted those batches
// resend them, so the pool does not need to track round outcomes.
package odservice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gordian-engine/gordering/od/odtransport"
	"github.com/gordian-engine/gordering/od/odtypes"
)

// Config configures a [Service].
type Config struct {
	// Maximum number of batches in a single proposal.
	MaxProposalBatches int

	// Number of most recent rounds whose proposals are retained
	// for answering requests.
	RoundsKept int

	// Overrides the clock used for proposal creation times.
	Now func() time.Time
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		MaxProposalBatches: 128,
		RoundsKept:         3,
	}
}

// Service is an in-memory on-demand ordering service.
// Its methods are safe for concurrent use.
type Service struct {
	log *slog.Logger
	cfg Config

	mu sync.Mutex

	pool    []odtypes.Batch
	inPool  map[odtypes.BatchHash]struct{}
	current odtypes.Round

	proposals map[odtypes.Round]odtypes.Proposal

	// Rounds with retained proposals, oldest first.
	order []odtypes.Round
}

var (
	_ odtransport.OrderingService = (*Service)(nil)
	_ odtransport.ProposalServer  = (*Service)(nil)
)

// New returns a new Service.
// Zero values in cfg are replaced with values from [DefaultConfig].
func New(log *slog.Logger, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MaxProposalBatches <= 0 {
		cfg.MaxProposalBatches = def.MaxProposalBatches
	}
	if cfg.RoundsKept <= 0 {
		cfg.RoundsKept = def.RoundsKept
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		log: log,
		cfg: cfg,

		inPool:    make(map[odtypes.BatchHash]struct{}),
		proposals: make(map[odtypes.Round]odtypes.Proposal),
	}
}

// OnBatches adds batches to the pool, ignoring batches already pooled.
// The round is only used for logging;
// batches for old rounds are resubmissions and are accepted.
func (s *Service) OnBatches(_ context.Context, round odtypes.Round, batches []odtypes.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added int
	for _, b := range batches {
		if _, ok := s.inPool[b.Hash]; ok {
			continue
		}
		s.inPool[b.Hash] = struct{}{}
		s.pool = append(s.pool, b)
		added++
	}

	s.log.Debug(
		"Received batches",
		"round", round,
		"n_received", len(batches),
		"n_added", added,
		"pool_size", len(s.pool),
	)
}

// OnRoundAdvanced cuts the proposal for round from the pool.
// If a proposal was already cut for round, it is kept as is.
func (s *Service) OnRoundAdvanced(_ context.Context, round odtypes.Round) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = round

	if _, ok := s.proposals[round]; ok {
		return
	}

	n := min(len(s.pool), s.cfg.MaxProposalBatches)
	var cut []odtypes.Batch
	if n > 0 {
		cut = make([]odtypes.Batch, n)
		copy(cut, s.pool[:n])

		for _, b := range cut {
			delete(s.inPool, b.Hash)
		}
		clear(s.pool[:n])
		s.pool = s.pool[n:]
	}

	s.proposals[round] = odtypes.Proposal{
		Round:     round,
		CreatedAt: s.cfg.Now(),
		Batches:   cut,
	}
	s.order = append(s.order, round)

	for len(s.order) > s.cfg.RoundsKept {
		delete(s.proposals, s.order[0])
		s.order = s.order[1:]
	}

	s.log.Debug(
		"Cut proposal",
		"round", round,
		"n_batches", n,
		"pool_size", len(s.pool),
	)
}

// RequestProposal returns the non-empty proposal cut for round, if any.
func (s *Service) RequestProposal(_ context.Context, round odtypes.Round) (odtypes.Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[round]
	if !ok || p.IsEmpty() {
		return odtypes.Proposal{}, false
	}
	return p, true
}

// Stats is a point-in-time summary of the service.
type Stats struct {
	CurrentRound odtypes.Round
	PoolSize     int
	RoundsKept   int
}

// Stats returns the current [Stats].
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		CurrentRound: s.current,
		PoolSize:     len(s.pool),
		RoundsKept:   len(s.order),
	}
}
