// Package ledger anchors certificate hashes on an append-only ledger.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is the contract's verification status code.
type Status int

const (
	StatusValid Status = iota
	StatusNotExist
	StatusRevoked
	StatusExpired
	StatusHashMismatch
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "VALID"
	case StatusNotExist:
		return "NOT_EXIST"
	case StatusRevoked:
		return "REVOKED"
	case StatusExpired:
		return "EXPIRED"
	case StatusHashMismatch:
		return "HASH_MISMATCH"
	}
	return fmt.Sprintf("STATUS_%d", int(s))
}

// Receipt identifies the transaction that carried a write.
type Receipt struct {
	TxHash      string
	BlockNumber int64
}

// Attestation is the ledger's answer for (certificateNo, fileHash).
type Attestation struct {
	Valid     bool
	Timestamp int64
	Status    Status
}

// Anchor is optional everywhere it is used: a nil Anchor means no ledger is configured.
type Anchor interface {
	Store(ctx context.Context, certificateNo, fileHash string) (Receipt, error)
	Verify(ctx context.Context, certificateNo, fileHash string) (Attestation, error)
	Revoke(ctx context.Context, certificateNo string) (Receipt, error)
}

type memoryEntry struct {
	fileHash  string
	timestamp int64
	revoked   bool
}

// Memory is an in-process ledger. SetFailure makes every call fail until cleared.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	block   int64
	fail    error
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

func (m *Memory) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *Memory) Store(_ context.Context, certificateNo, fileHash string) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Receipt{}, m.fail
	}
	if _, ok := m.entries[certificateNo]; !ok {
		m.entries[certificateNo] = &memoryEntry{fileHash: fileHash, timestamp: time.Now().Unix()}
	}
	return m.nextReceipt(certificateNo), nil
}

func (m *Memory) Verify(_ context.Context, certificateNo, fileHash string) (Attestation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Attestation{}, m.fail
	}

	e, ok := m.entries[certificateNo]
	switch {
	case !ok:
		return Attestation{Status: StatusNotExist}, nil
	case e.revoked:
		return Attestation{Timestamp: e.timestamp, Status: StatusRevoked}, nil
	case e.fileHash != fileHash:
		return Attestation{Timestamp: e.timestamp, Status: StatusHashMismatch}, nil
	}
	return Attestation{Valid: true, Timestamp: e.timestamp, Status: StatusValid}, nil
}

func (m *Memory) Revoke(_ context.Context, certificateNo string) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Receipt{}, m.fail
	}
	e, ok := m.entries[certificateNo]
	if !ok {
		return Receipt{}, fmt.Errorf("certificate %s not anchored", certificateNo)
	}
	e.revoked = true
	return m.nextReceipt(certificateNo), nil
}

func (m *Memory) nextReceipt(certificateNo string) Receipt {
	m.block++
	return Receipt{TxHash: fmt.Sprintf("0xmem%s%d", certificateNo, m.block), BlockNumber: m.block}
}
