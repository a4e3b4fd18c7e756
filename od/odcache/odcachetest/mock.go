// Package odcachetest contains test doubles for [odcache.Cache].
package odcachetest

import (
	"github.com/gordian-engine/gordering/od/odcache"
	"github.com/gordian-engine/gordering/od/odtypes"
	"github.com/stretchr/testify/mock"
)

// MockCache is a testify mock of [odcache.Cache].
type MockCache struct {
	mock.Mock
}

var _ odcache.Cache = (*MockCache)(nil)

func (m *MockCache) AddToBack(batches []odtypes.Batch) {
	m.Called(batches)
}

func (m *MockCache) Up() {
	m.Called()
}

func (m *MockCache) ClearFrontAndGet() []odtypes.Batch {
	args := m.Called()
	return batchesArg(args, 0)
}

func (m *MockCache) Remove(batches []odtypes.Batch) {
	m.Called(batches)
}

func (m *MockCache) Front() []odtypes.Batch {
	args := m.Called()
	return batchesArg(args, 0)
}

func (m *MockCache) Back() []odtypes.Batch {
	args := m.Called()
	return batchesArg(args, 0)
}

func (m *MockCache) Len() int {
	args := m.Called()
	return args.Int(0)
}

// batchesArg allows expectations to return an untyped nil.
func batchesArg(args mock.Arguments, i int) []odtypes.Batch {
	v := args.Get(i)
	if v == nil {
		return nil
	}
	return v.([]odtypes.Batch)
}
