// Package oddebug contains an HTTP server for inspecting and driving
// an ordering gate on a running node.
package oddebug

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gordian-engine/gordering/od/odgate"
	"github.com/gordian-engine/gordering/od/odservice"
	"github.com/gordian-engine/gordering/od/odtypes"
	"github.com/gorilla/mux"
	"github.com/rcrowley/go-metrics"
)

// Gate is the subset of [*odgate.Gate] used by the HTTP server.
type Gate interface {
	PropagateBatch(context.Context, odtypes.Batch) error
	Snapshot(context.Context) (odgate.Snapshot, error)
	Metrics() metrics.Registry
}

var _ Gate = (*odgate.Gate)(nil)

type HTTPServer struct {
	done chan struct{}
}

type HTTPServerConfig struct {
	Listener net.Listener

	Gate Gate

	// Optional. When set, GET /service reports its stats.
	Service *odservice.Service
}

func NewHTTPServer(ctx context.Context, log *slog.Logger, cfg HTTPServerConfig) *HTTPServer {
	srv := &http.Server{
		Handler: newMux(log, cfg),

		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	h := &HTTPServer{
		done: make(chan struct{}),
	}
	go h.serve(log, cfg.Listener, srv)
	go h.waitForShutdown(ctx, srv)

	return h
}

func (h *HTTPServer) Wait() {
	<-h.done
}

func (h *HTTPServer) waitForShutdown(ctx context.Context, srv *http.Server) {
	select {
	case <-h.done:
		return
	case <-ctx.Done():
		_ = srv.Close()
	}
}

func (h *HTTPServer) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(h.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("HTTP server shutting down")
		} else {
			log.Info("HTTP server shutting down due to error", "err", err)
		}
	}
}

func newMux(log *slog.Logger, cfg HTTPServerConfig) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/round", handleRound(log, cfg)).Methods("GET")
	r.HandleFunc("/cache", handleCache(log, cfg)).Methods("GET")
	r.HandleFunc("/metrics", handleMetrics(cfg)).Methods("GET")
	r.HandleFunc("/batches", handleSubmitBatch(log, cfg)).Methods("POST")

	if cfg.Service != nil {
		r.HandleFunc("/service", handleService(log, cfg)).Methods("GET")
	}

	return r
}
