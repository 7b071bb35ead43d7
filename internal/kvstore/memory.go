package kvstore

import (
	"bytes"
	"context"
	"errors"
	"sync"
)

// MemoryStore is an in-process Store. Values are copied on the way in and out.
type MemoryStore struct {
	area   Area
	mu     sync.Mutex
	data   map[string][]byte
	broker broker
}

func NewMemoryStore(area Area) *MemoryStore {
	return &MemoryStore{area: area, data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(v), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.data[key] = bytes.Clone(value)
	m.mu.Unlock()
	m.broker.publish(Change{Area: m.area, Key: key, Value: bytes.Clone(value)})
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	m.broker.publish(Change{Area: m.area, Key: key, Deleted: true})
	return nil
}

func (m *MemoryStore) List(_ context.Context) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = bytes.Clone(v)
	}
	return out, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.data = make(map[string][]byte)
	m.mu.Unlock()
	m.broker.publish(Change{Area: m.area, Cleared: true})
	return nil
}

func (m *MemoryStore) Update(_ context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	m.mu.Lock()
	current, ok := m.data[key]
	if ok {
		current = bytes.Clone(current)
	}
	next, err := fn(current)
	if errors.Is(err, ErrSkip) {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if next == nil {
		delete(m.data, key)
	} else {
		m.data[key] = bytes.Clone(next)
	}
	m.mu.Unlock()

	m.broker.publish(Change{Area: m.area, Key: key, Value: bytes.Clone(next), Deleted: next == nil})
	return nil
}

func (m *MemoryStore) Subscribe(buffer int) (<-chan Change, func()) {
	return m.broker.subscribe(buffer)
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
