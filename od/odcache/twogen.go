package odcache

import "github.com/gordian-engine/gordering/od/odtypes"

var _ Cache = (*TwoGen)(nil)

// TwoGen is the default [Cache] implementation.
// The zero value is not usable; use [NewTwoGen].
type TwoGen struct {
	front, back *batchSet
}

// NewTwoGen returns an empty TwoGen cache.
func NewTwoGen() *TwoGen {
	return &TwoGen{
		front: newBatchSet(),
		back:  newBatchSet(),
	}
}

func (c *TwoGen) AddToBack(batches []odtypes.Batch) {
	for _, b := range batches {
		if c.front.Has(b.Hash) {
			continue
		}
		c.back.Add(b)
	}
}

func (c *TwoGen) Up() {
	for _, b := range c.back.items {
		c.front.Add(b)
	}
	c.back.Clear()
}

func (c *TwoGen) ClearFrontAndGet() []odtypes.Batch {
	out := c.front.items
	c.front = newBatchSet()
	return out
}

func (c *TwoGen) Remove(batches []odtypes.Batch) {
	if len(batches) == 0 {
		return
	}

	hs := make(map[odtypes.BatchHash]struct{}, len(batches))
	for _, b := range batches {
		hs[b.Hash] = struct{}{}
	}

	c.front.RemoveAll(hs)
	c.back.RemoveAll(hs)
}

func (c *TwoGen) Front() []odtypes.Batch {
	return c.front.Items()
}

func (c *TwoGen) Back() []odtypes.Batch {
	return c.back.Items()
}

func (c *TwoGen) Len() int {
	return len(c.front.items) + len(c.back.items)
}

// batchSet is an insertion-ordered set of batches keyed by hash.
type batchSet struct {
	items []odtypes.Batch
	idx   map[odtypes.BatchHash]struct{}
}

func newBatchSet() *batchSet {
	return &batchSet{
		idx: make(map[odtypes.BatchHash]struct{}),
	}
}

func (s *batchSet) Has(h odtypes.BatchHash) bool {
	_, ok := s.idx[h]
	return ok
}

func (s *batchSet) Add(b odtypes.Batch) {
	if s.Has(b.Hash) {
		return
	}
	s.idx[b.Hash] = struct{}{}
	s.items = append(s.items, b)
}

// RemoveAll deletes every item whose hash is in hs,
// compacting the ordered slice in place.
func (s *batchSet) RemoveAll(hs map[odtypes.BatchHash]struct{}) {
	kept := s.items[:0]
	for _, b := range s.items {
		if _, ok := hs[b.Hash]; ok {
			delete(s.idx, b.Hash)
			continue
		}
		kept = append(kept, b)
	}

	// Clear the tail so removed batches can be collected.
	clear(s.items[len(kept):])
	s.items = kept
}

func (s *batchSet) Clear() {
	clear(s.items)
	s.items = s.items[:0]
	clear(s.idx)
}

func (s *batchSet) Items() []odtypes.Batch {
	if len(s.items) == 0 {
		return nil
	}

	out := make([]odtypes.Batch, len(s.items))
	copy(out, s.items)
	return out
}
