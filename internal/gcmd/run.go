package gcmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/gordian-engine/gordering/od/oddebug"
	"github.com/gordian-engine/gordering/od/oddevnet"
	"github.com/gordian-engine/gordering/od/odgate"
	"github.com/gordian-engine/gordering/od/odproposal"
	"github.com/gordian-engine/gordering/od/odservice"
	"github.com/gordian-engine/gordering/od/odtransport"
	"github.com/gordian-engine/gordering/od/odtransport/odlibp2p"
	"github.com/gordian-engine/gordering/od/odtypes"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type runConfig struct {
	NodeName string

	Listen []string
	Peer   string

	InitialBlockRound uint64
	PullTimeout       time.Duration

	MaxProposalBatches int

	Devnet     bool
	RoundDelay time.Duration

	HTTPAddr   string
	HTTPSocket string
}

func newRunCmd(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an ordering node",
		Long: `Run an ordering node.

The node always runs an in-memory ordering service reachable over libp2p.
Without --peer, the node's gate uses that local service directly.
With --peer, the gate pushes batches over gossipsub
and requests proposals from the given peer.

Without --devnet, round events must come from an external consensus engine,
which this binary does not provide; the node only collects batches.

Every flag may also be set through a GORDERING_ environment variable,
such as GORDERING_HTTP_SOCKET for --http-socket.`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}

			cfg, err := runConfigFromViper(v)
			if err != nil {
				return err
			}

			return runNode(cmd.Context(), log, cfg)
		},
	}

	f := cmd.Flags()
	f.String("config", "", "optional config file; keys match flag names")
	f.String("node-name", "", "name used in logs (default: random petname)")
	f.StringSlice("listen", []string{"/ip4/127.0.0.1/tcp/0"}, "libp2p listen multiaddrs")
	f.String("peer", "", "multiaddr with /p2p/ component of the remote ordering service")
	f.Uint64("initial-block-round", 1, "block round of the gate's initial round")
	f.Duration("pull-timeout", odlibp2p.DefaultRequestTimeout, "timeout for requesting a proposal from --peer")
	f.Int("max-proposal-batches", odservice.DefaultConfig().MaxProposalBatches, "maximum batches in a proposal cut by the local ordering service")
	f.Bool("devnet", false, "drive rounds with a loopback consensus that commits every non-empty proposal")
	f.Duration("round-delay", time.Second, "delay between rounds with --devnet")
	f.String("http-addr", "", "TCP address for the debug HTTP server")
	f.String("http-socket", "", "unix socket path for the debug HTTP server")

	return cmd
}

func runConfigFromViper(v *viper.Viper) (runConfig, error) {
	cfg := runConfig{
		NodeName: v.GetString("node-name"),

		Listen: v.GetStringSlice("listen"),
		Peer:   v.GetString("peer"),

		InitialBlockRound: v.GetUint64("initial-block-round"),
		PullTimeout:       v.GetDuration("pull-timeout"),

		MaxProposalBatches: v.GetInt("max-proposal-batches"),

		Devnet:     v.GetBool("devnet"),
		RoundDelay: v.GetDuration("round-delay"),

		HTTPAddr:   v.GetString("http-addr"),
		HTTPSocket: v.GetString("http-socket"),
	}

	if cfg.NodeName == "" {
		cfg.NodeName = petname.Generate(2, "-")
	}

	if len(cfg.Listen) == 0 {
		return cfg, errors.New("at least one --listen address is required")
	}
	for _, a := range cfg.Listen {
		if _, err := multiaddr.NewMultiaddr(a); err != nil {
			return cfg, fmt.Errorf("invalid --listen address %q: %w", a, err)
		}
	}

	if cfg.InitialBlockRound == 0 {
		return cfg, errors.New("--initial-block-round must be positive")
	}

	return cfg, nil
}

func runNode(ctx context.Context, log *slog.Logger, cfg runConfig) error {
	log = log.With("node", cfg.NodeName)

	// Canceled on any return, so that background work started below
	// stops before its deferred Wait.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.Listen...))
	if err != nil {
		return fmt.Errorf("failed to create libp2p host: %w", err)
	}
	defer h.Close()

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return fmt.Errorf("failed to start gossipsub: %w", err)
	}
	topic, err := odlibp2p.JoinBatchTopic(ps)
	if err != nil {
		return err
	}
	defer func() { _ = topic.Close() }()

	svc := odservice.New(log.With("sys", "service"), odservice.Config{
		MaxProposalBatches: cfg.MaxProposalBatches,
	})

	srv, err := odlibp2p.NewServer(ctx, log.With("sys", "ordserver"), odlibp2p.ServerConfig{
		Host:    h,
		Topic:   topic,
		Handler: svc,
	})
	if err != nil {
		return err
	}
	defer srv.Wait()
	defer cancel()

	tr, err := newTransport(ctx, log, h, topic, svc, cfg)
	if err != nil {
		return err
	}

	events := make(chan odtypes.RoundEvent)
	g, err := odgate.New(ctx, log.With("sys", "gate"), odgate.Config{
		InitialRound: odtypes.Round{BlockRound: cfg.InitialBlockRound, RejectRound: 1},

		Transport:       tr,
		OrderingService: svc,
		Factory:         odproposal.EmptyFactory{},

		RoundEvents: events,
	})
	if err != nil {
		return err
	}
	defer g.Wait()
	defer cancel()

	if cfg.Devnet {
		c := oddevnet.New(ctx, log.With("sys", "devnet"), oddevnet.Config{
			Proposals:   g.Subscribe().Proposals(),
			RoundEvents: events,
			RoundDelay:  cfg.RoundDelay,
		})
		defer c.Wait()
		defer cancel()
	}

	for _, l := range []struct{ network, addr string }{
		{"tcp", cfg.HTTPAddr},
		{"unix", cfg.HTTPSocket},
	} {
		if l.addr == "" {
			continue
		}

		ln, err := net.Listen(l.network, l.addr)
		if err != nil {
			return fmt.Errorf("failed to listen for HTTP on %s %s: %w", l.network, l.addr, err)
		}

		hs := oddebug.NewHTTPServer(ctx, log.With("sys", "http"), oddebug.HTTPServerConfig{
			Listener: ln,
			Gate:     g,
			Service:  svc,
		})
		defer hs.Wait()
		defer cancel()

		log.Info("Debug HTTP server listening", "network", l.network, "addr", ln.Addr().String())
	}

	addrs := make([]string, len(h.Addrs()))
	for i, a := range h.Addrs() {
		addrs[i] = fmt.Sprintf("%s/p2p/%s", a, h.ID())
	}
	log.Info("Node started", "peer_id", h.ID().String(), "addrs", addrs)

	<-ctx.Done()
	log.Info("Shutting down", "cause", context.Cause(ctx))
	return nil
}

func newTransport(
	ctx context.Context,
	log *slog.Logger,
	h host.Host,
	topic *pubsub.Topic,
	svc *odservice.Service,
	cfg runConfig,
) (odtransport.Transport, error) {
	if cfg.Peer == "" {
		return odtransport.Local{Server: svc}, nil
	}

	ai, err := peer.AddrInfoFromString(cfg.Peer)
	if err != nil {
		return nil, fmt.Errorf("invalid --peer %q: %w", cfg.Peer, err)
	}

	if err := h.Connect(ctx, *ai); err != nil {
		return nil, fmt.Errorf("failed to connect to ordering peer %s: %w", ai.ID, err)
	}

	c, err := odlibp2p.NewClient(log.With("sys", "ordclient"), odlibp2p.ClientConfig{
		Host:         h,
		Topic:        topic,
		OrderingPeer: ai.ID,

		RequestTimeout: cfg.PullTimeout,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
