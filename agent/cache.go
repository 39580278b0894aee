package agent

import (
	"context"
	"sync"
)

type Cache[S any] interface {
	Set(ctx context.Context, key string, val S) error
	Get(ctx context.Context, key string) (S, bool, error)
	Del(ctx context.Context, key string) error
}

// MemoryCache keeps values in process. Operations on different keys never
// wait on each other.
type MemoryCache[S any] struct {
	m sync.Map
}

func NewMemoryCache[S any]() *MemoryCache[S] {
	return &MemoryCache[S]{}
}

func (m *MemoryCache[S]) Set(ctx context.Context, key string, val S) error {
	m.m.Store(key, val)
	return nil
}

func (m *MemoryCache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	val, ok := m.m.Load(key)
	if !ok {
		var zero S
		return zero, false, nil
	}
	return val.(S), true, nil
}

func (m *MemoryCache[S]) Del(ctx context.Context, key string) error {
	m.m.Delete(key)
	return nil
}
