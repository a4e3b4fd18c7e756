package oddebug

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gordian-engine/gordering/od/odgate"
	"github.com/gordian-engine/gordering/od/odtypes"
	"github.com/rcrowley/go-metrics"
)

// RoundResponse is the body of GET /round.
type RoundResponse struct {
	BlockRound  uint64
	RejectRound uint64
}

// CacheResponse is the body of GET /cache.
// Batches are identified by their hex-encoded hashes.
type CacheResponse struct {
	Round RoundResponse
	Front []string
	Back  []string
}

// SubmitRequest is the body of POST /batches.
// Transactions are base64-encoded in JSON.
type SubmitRequest struct {
	Transactions [][]byte `json:"transactions"`
}

// SubmitResponse is the body returned from a successful POST /batches.
type SubmitResponse struct {
	Hash string `json:"hash"`
}

// ServiceResponse is the body of GET /service.
type ServiceResponse struct {
	CurrentRound RoundResponse
	PoolSize     int
	RoundsKept   int
}

func handleRound(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		snap, err := cfg.Gate.Snapshot(req.Context())
		if err != nil {
			writeGateError(w, err)
			return
		}

		if err := json.NewEncoder(w).Encode(roundResponse(snap.Round)); err != nil {
			log.Warn("Failed to marshal round", "err", err)
			return
		}
	}
}

func handleCache(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		snap, err := cfg.Gate.Snapshot(req.Context())
		if err != nil {
			writeGateError(w, err)
			return
		}

		resp := CacheResponse{
			Round: roundResponse(snap.Round),
			Front: hashStrings(snap.Front),
			Back:  hashStrings(snap.Back),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn("Failed to marshal cache", "err", err)
			return
		}
	}
}

func handleMetrics(cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		metrics.WriteJSONOnce(cfg.Gate.Metrics(), w)
	}
}

func handleSubmitBatch(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		var sr SubmitRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 16<<20)).Decode(&sr); err != nil {
			http.Error(
				w,
				fmt.Sprintf("failed to decode request: %v", err),
				http.StatusBadRequest,
			)
			return
		}
		if len(sr.Transactions) == 0 {
			http.Error(w, "no transactions in request", http.StatusBadRequest)
			return
		}

		b := odtypes.NewBatch(sr.Transactions...)
		if err := cfg.Gate.PropagateBatch(req.Context(), b); err != nil {
			writeGateError(w, err)
			return
		}

		log.Debug("Submitted batch", "hash", b.Hash, "n_txs", len(b.Transactions))

		if err := json.NewEncoder(w).Encode(SubmitResponse{Hash: b.Hash.String()}); err != nil {
			log.Warn("Failed to marshal submit response", "err", err)
			return
		}
	}
}

func handleService(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		s := cfg.Service.Stats()
		resp := ServiceResponse{
			CurrentRound: roundResponse(s.CurrentRound),
			PoolSize:     s.PoolSize,
			RoundsKept:   s.RoundsKept,
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn("Failed to marshal service stats", "err", err)
			return
		}
	}
}

func writeGateError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, odgate.ErrGateStopped) {
		code = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), code)
}

func roundResponse(r odtypes.Round) RoundResponse {
	return RoundResponse{BlockRound: r.BlockRound, RejectRound: r.RejectRound}
}

func hashStrings(bs []odtypes.Batch) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Hash.String()
	}
	return out
}
