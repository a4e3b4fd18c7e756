package odlibp2p

import (
	"time"

	"github.com/gordian-engine/gordering/od/odtypes"
)

// Wire format types.
// Batch hashes are never sent; receivers recompute them from the transactions.

type wireBatch struct {
	Txs [][]byte `json:"txs"`
}

type pushMessage struct {
	Round   odtypes.Round `json:"round"`
	Batches []wireBatch   `json:"batches"`
}

type pullRequest struct {
	Round odtypes.Round `json:"round"`
}

type pullResponse struct {
	Found bool `json:"found"`

	Round     odtypes.Round `json:"round"`
	CreatedAt time.Time     `json:"created_at"`
	Batches   []wireBatch   `json:"batches,omitempty"`
}

func toWireBatches(bs []odtypes.Batch) []wireBatch {
	if len(bs) == 0 {
		return nil
	}
	out := make([]wireBatch, len(bs))
	for i, b := range bs {
		out[i] = wireBatch{Txs: b.Transactions}
	}
	return out
}

func fromWireBatches(wbs []wireBatch) []odtypes.Batch {
	if len(wbs) == 0 {
		return nil
	}
	out := make([]odtypes.Batch, len(wbs))
	for i, wb := range wbs {
		out[i] = odtypes.NewBatch(wb.Txs...)
	}
	return out
}

func newPullResponse(p odtypes.Proposal, found bool) pullResponse {
	if !found {
		return pullResponse{}
	}
	return pullResponse{
		Found:     true,
		Round:     p.Round,
		CreatedAt: p.CreatedAt,
		Batches:   toWireBatches(p.Batches),
	}
}

func (r pullResponse) Proposal() odtypes.Proposal {
	return odtypes.Proposal{
		Round:     r.Round,
		CreatedAt: r.CreatedAt,
		Batches:   fromWireBatches(r.Batches),
	}
}
