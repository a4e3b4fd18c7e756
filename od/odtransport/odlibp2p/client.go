package odlibp2p

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gordian-engine/gordering/od/odtransport"
	"github.com/gordian-engine/gordering/od/odtypes"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
)

// ClientConfig configures a [Client].
type ClientConfig struct {
	Host  host.Host
	Topic *pubsub.Topic

	// Peer whose ordering service answers proposal requests.
	OrderingPeer peer.ID

	// Bound on a single proposal request.
	// Zero uses DefaultRequestTimeout.
	RequestTimeout time.Duration
}

// DefaultRequestTimeout is the default bound on a proposal request.
const DefaultRequestTimeout = time.Second

// Client is an [odtransport.Transport] over libp2p.
type Client struct {
	log *slog.Logger

	h     host.Host
	topic *pubsub.Topic

	orderingPeer peer.ID
	timeout      time.Duration
}

var _ odtransport.Transport = (*Client)(nil)

// NewClient returns a new Client based on cfg.
func NewClient(log *slog.Logger, cfg ClientConfig) (*Client, error) {
	if cfg.Host == nil {
		return nil, errors.New("host required")
	}
	if cfg.Topic == nil {
		return nil, errors.New("topic required")
	}
	if cfg.OrderingPeer == "" {
		return nil, errors.New("ordering peer required")
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	return &Client{
		log: log,

		h:     cfg.Host,
		topic: cfg.Topic,

		orderingPeer: cfg.OrderingPeer,
		timeout:      cfg.RequestTimeout,
	}, nil
}

// Push implements [odtransport.Transport] by publishing on the batch topic.
func (c *Client) Push(ctx context.Context, round odtypes.Round, batches []odtypes.Batch) {
	b, err := json.Marshal(pushMessage{
		Round:   round,
		Batches: toWireBatches(batches),
	})
	if err != nil {
		c.log.Warn("Failed to marshal batches", "round", round, "err", err)
		return
	}

	if err := c.topic.Publish(ctx, b); err != nil {
		c.log.Warn(
			"Failed to publish batches",
			"round", round,
			"n_batches", len(batches),
			"err", err,
		)
	}
}

// Pull implements [odtransport.Transport] with a request to the ordering peer.
// Any failure, including the request timeout, reports no proposal.
func (c *Client) Pull(ctx context.Context, round odtypes.Round) (odtypes.Proposal, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.requestProposal(ctx, round)
	if err != nil {
		c.log.Info(
			"Proposal request failed",
			"round", round,
			"peer", c.orderingPeer,
			"err", err,
		)
		return odtypes.Proposal{}, false
	}

	if !resp.Found {
		return odtypes.Proposal{}, false
	}
	return resp.Proposal(), true
}

func (c *Client) requestProposal(ctx context.Context, round odtypes.Round) (pullResponse, error) {
	s, err := c.h.NewStream(ctx, c.orderingPeer, ProposalProtocolID)
	if err != nil {
		return pullResponse{}, fmt.Errorf("failed to open stream: %w", err)
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(dl)
	}

	if err := json.NewEncoder(s).Encode(pullRequest{Round: round}); err != nil {
		_ = s.Reset()
		return pullResponse{}, fmt.Errorf("failed to write request: %w", err)
	}
	if err := s.CloseWrite(); err != nil {
		_ = s.Reset()
		return pullResponse{}, fmt.Errorf("failed to close write side: %w", err)
	}

	var resp pullResponse
	if err := json.NewDecoder(io.LimitReader(s, maxMessageSize)).Decode(&resp); err != nil {
		_ = s.Reset()
		return pullResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	_ = s.Close()
	return resp, nil
}
