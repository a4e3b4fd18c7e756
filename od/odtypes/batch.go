package odtypes

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// BatchHash is the stable identity of a [Batch].
type BatchHash [32]byte

func (h BatchHash) String() string {
	return hex.EncodeToString(h[:])
}

// Batch is an atomically-included group of client transactions.
//
// Two batches are the same batch if and only if their hashes are equal;
// the Transactions field is carried along but never compared.
type Batch struct {
	Transactions [][]byte
	Hash         BatchHash
}

// NewBatch returns a Batch containing txs, with its Hash populated.
func NewBatch(txs ...[]byte) Batch {
	return Batch{
		Transactions: txs,
		Hash:         HashTransactions(txs),
	}
}

// HashTransactions returns the SHA3-256 digest of the transactions,
// each prefixed with its uvarint-encoded length
// so that different splits of the same bytes hash differently.
func HashTransactions(txs [][]byte) BatchHash {
	h := sha3.New256()

	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(txs)))
	_, _ = h.Write(lenBuf[:n])

	for _, tx := range txs {
		n := binary.PutUvarint(lenBuf[:], uint64(len(tx)))
		_, _ = h.Write(lenBuf[:n])
		_, _ = h.Write(tx)
	}

	var out BatchHash
	h.Sum(out[:0])
	return out
}

// DedupBatches returns the union of all the given batch lists,
// preserving first-seen order and dropping later batches
// whose hash was already seen.
func DedupBatches(lists ...[]Batch) []Batch {
	var sz int
	for _, l := range lists {
		sz += len(l)
	}
	if sz == 0 {
		return nil
	}

	seen := make(map[BatchHash]struct{}, sz)
	out := make([]Batch, 0, sz)
	for _, l := range lists {
		for _, b := range l {
			if _, ok := seen[b.Hash]; ok {
				continue
			}
			seen[b.Hash] = struct{}{}
			out = append(out, b)
		}
	}
	return out
}

// BatchHashes returns the hashes of batches, in the same order.
func BatchHashes(batches []Batch) []BatchHash {
	if len(batches) == 0 {
		return nil
	}

	out := make([]BatchHash, len(batches))
	for i, b := range batches {
		out[i] = b.Hash
	}
	return out
}
