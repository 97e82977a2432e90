// Package store persists whole-state documents (the ledger snapshot and the
// rotation index). Every Save replaces the previous document atomically.
package store

import (
	"context"
	"errors"
	"sync"
)

// Document keys.
const (
	KeyLedger   = "ledger"
	KeyRotation = "rotation"
)

// ErrNotFound is returned by Load when no document has been saved under the key.
var ErrNotFound = errors.New("document not found")

// Store reads and writes named documents.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Memory is an in-process Store, used for tests and dry runs.
type Memory struct {
	mu   sync.Mutex
	docs map[string][]byte
	// FailSaves makes every Save fail, for exercising degraded durability.
	FailSaves bool
}

// SetFailSaves toggles FailSaves under the store's lock.
func (m *Memory) SetFailSaves(v bool) {
	m.mu.Lock()
	m.FailSaves = v
	m.mu.Unlock()
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{docs: map[string][]byte{}}
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return errors.New("memory store: saves disabled")
	}
	m.docs[key] = append([]byte(nil), data...)
	return nil
}
