package database

import (
	"context"
	"sync"
)

// MockStore is a mock implementation of the Store interface for testing.
// Uses function fields to allow tests to inject custom behavior; when a
// field is nil the mock falls back to an in-memory map.
type MockStore struct {
	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, origin, key string, value []byte) error
	UpdateFunc func(ctx context.Context, origin, key string, fn UpdateFunc) ([]byte, error)
	CloseFunc  func() error

	Notifier

	mu   sync.Mutex
	data map[string][]byte
	// Writes counts successful writes per key.
	Writes map[string]int
}

// NewMockStore returns a mock backed by an empty in-memory map.
func NewMockStore() *MockStore {
	return &MockStore{
		data:   make(map[string][]byte),
		Writes: make(map[string]int),
	}
}

// Get calls the mock function or reads the in-memory map.
func (m *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	return m.data[key], nil
}

// Set calls the mock function or writes the in-memory map.
func (m *MockStore) Set(ctx context.Context, origin, key string, value []byte) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, origin, key, value)
	}
	m.put(key, value)
	m.Publish(Change{Key: key, Value: value, Origin: origin})
	return nil
}

// Update calls the mock function or applies fn to the in-memory map.
func (m *MockStore) Update(ctx context.Context, origin, key string, fn UpdateFunc) ([]byte, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, origin, key, fn)
	}
	m.mu.Lock()
	m.init()
	next, err := fn(m.data[key])
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.data[key] = next
	m.Writes[key]++
	m.mu.Unlock()

	m.Publish(Change{Key: key, Value: next, Origin: origin})
	return next, nil
}

// WriteCount returns how many writes key has received.
func (m *MockStore) WriteCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Writes[key]
}

// Close calls the mock function or closes watchers.
func (m *MockStore) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	m.Notifier.Close()
	return nil
}

func (m *MockStore) put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.data[key] = value
	m.Writes[key]++
}

// init allocates the maps of a zero-value mock. Caller must hold mu.
func (m *MockStore) init() {
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	if m.Writes == nil {
		m.Writes = make(map[string]int)
	}
}

var _ Store = (*MockStore)(nil)
