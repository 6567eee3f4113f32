package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. It backs tests and deployments that opt
// out of persistence; sessions vanish with the process.
type Memory struct {
	mu  sync.RWMutex
	rec *Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Current(_ context.Context) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.rec == nil {
		return nil, ErrNotFound
	}
	rec := *m.rec
	return &rec, nil
}

func (m *Memory) Put(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.rec = &cp
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rec = nil
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
