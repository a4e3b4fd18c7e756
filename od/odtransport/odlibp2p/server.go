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
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
)

// ServerConfig configures a [Server].
type ServerConfig struct {
	Host    host.Host
	Topic   *pubsub.Topic
	Handler odtransport.ProposalServer

	// Bound on handling a single proposal stream.
	// Zero uses DefaultStreamTimeout.
	StreamTimeout time.Duration
}

// DefaultStreamTimeout is the default bound on serving one proposal request.
const DefaultStreamTimeout = 5 * time.Second

// Server delivers batches published on the batch topic,
// and answers proposal requests, using a [odtransport.ProposalServer].
type Server struct {
	log *slog.Logger

	h       host.Host
	handler odtransport.ProposalServer
	timeout time.Duration

	ctx context.Context

	done chan struct{}
}

// NewServer returns a new Server based on cfg.
//
// The server runs a background goroutine associated with ctx,
// reading from the batch topic.
// Cancel ctx and call Wait to stop it.
func NewServer(ctx context.Context, log *slog.Logger, cfg ServerConfig) (*Server, error) {
	if cfg.Host == nil {
		return nil, errors.New("host required")
	}
	if cfg.Topic == nil {
		return nil, errors.New("topic required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("handler required")
	}
	if cfg.StreamTimeout == 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}

	sub, err := cfg.Topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to batch topic: %w", err)
	}

	s := &Server{
		log: log,

		h:       cfg.Host,
		handler: cfg.Handler,
		timeout: cfg.StreamTimeout,

		ctx: ctx,

		done: make(chan struct{}),
	}

	s.h.SetStreamHandler(ProposalProtocolID, s.handleProposalStream)

	go s.readBatches(sub)

	return s, nil
}

// Wait blocks until the server's background goroutine has finished.
func (s *Server) Wait() {
	<-s.done
}

func (s *Server) readBatches(sub *pubsub.Subscription) {
	defer close(s.done)
	defer s.h.RemoveStreamHandler(ProposalProtocolID)
	defer sub.Cancel()

	self := s.h.ID()

	for {
		msg, err := sub.Next(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				s.log.Warn("Batch subscription ended unexpectedly", "err", err)
			}
			return
		}

		if msg.GetFrom() == self {
			// The local ordering service is not fed through the topic.
			continue
		}

		var pm pushMessage
		if err := json.Unmarshal(msg.Data, &pm); err != nil {
			s.log.Info(
				"Dropping malformed batch message",
				"from", msg.GetFrom(),
				"err", err,
			)
			continue
		}

		s.handler.OnBatches(s.ctx, pm.Round, fromWireBatches(pm.Batches))
	}
}

func (s *Server) handleProposalStream(st network.Stream) {
	_ = st.SetDeadline(time.Now().Add(s.timeout))

	var req pullRequest
	if err := json.NewDecoder(io.LimitReader(st, maxMessageSize)).Decode(&req); err != nil {
		s.log.Info(
			"Failed to read proposal request",
			"peer", st.Conn().RemotePeer(),
			"err", err,
		)
		_ = st.Reset()
		return
	}

	p, ok := s.handler.RequestProposal(s.ctx, req.Round)

	if err := json.NewEncoder(st).Encode(newPullResponse(p, ok)); err != nil {
		s.log.Info(
			"Failed to write proposal response",
			"peer", st.Conn().RemotePeer(),
			"round", req.Round,
			"err", err,
		)
		_ = st.Reset()
		return
	}

	_ = st.Close()
}
