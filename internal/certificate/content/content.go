// Package content stores certificate artifacts and proof files by content id.
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	apperrors "certificate-workers/internal/common/errors"
)

// Store is a content-addressed blob store. Put is idempotent for identical bytes.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, cid string) ([]byte, error)
	Exists(ctx context.Context, cid string) (bool, error)
	Delete(ctx context.Context, cid string) error
}

// Hash returns the hex SHA-256 of data, the file hash recorded on certificates.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MemoryStore keeps blobs in process memory keyed by their hash.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, _ string, data []byte) (string, error) {
	cid := "mem-" + Hash(data)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[cid] = append([]byte(nil), data...)
	return cid, nil
}

func (m *MemoryStore) Get(_ context.Context, cid string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[cid]
	if !ok {
		return nil, fmt.Errorf("%w: content %s", apperrors.ErrNotFound, cid)
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryStore) Exists(_ context.Context, cid string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[cid]
	return ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, cid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, cid)
	return nil
}

// Overwrite replaces stored bytes without changing the cid, simulating tampering.
func (m *MemoryStore) Overwrite(cid string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[cid] = append([]byte(nil), data...)
}
