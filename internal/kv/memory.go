package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Store. It is safe for concurrent use.
// Update holds the write lock for the whole callback, so transactions
// are fully serialized.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	return m.Update(ctx, func(tx Txn) error { return tx.Set(ctx, key, value) })
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	return m.Update(ctx, func(tx Txn) error { return tx.Remove(ctx, key) })
}

func (m *Memory) View(ctx context.Context, fn func(Reader) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return fn(&memoryTxn{base: m.data, writes: map[string]*string{}})
}

func (m *Memory) Update(ctx context.Context, fn func(Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTxn{base: m.data, writes: map[string]*string{}}
	if err := fn(tx); err != nil {
		return err
	}

	for k, v := range tx.writes {
		if v == nil {
			delete(m.data, k)
			continue
		}
		m.data[k] = *v
	}
	return nil
}

// Close marks the store closed. Data is discarded.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// memoryTxn overlays pending writes on the committed map.
// A nil entry in writes marks a pending removal.
type memoryTxn struct {
	base   map[string]string
	writes map[string]*string
}

func (t *memoryTxn) Get(ctx context.Context, key string) (string, bool, error) {
	if v, staged := t.writes[key]; staged {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	v, ok := t.base[key]
	return v, ok, nil
}

func (t *memoryTxn) Set(ctx context.Context, key, value string) error {
	t.writes[key] = &value
	return nil
}

func (t *memoryTxn) Remove(ctx context.Context, key string) error {
	t.writes[key] = nil
	return nil
}
