package importer

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"
)

// ErrPendingNotFound is returned when no pending import matches a session and
// token. Stores never distinguish "absent" from "wrong token".
var ErrPendingNotFound = errors.New("pending import not found")

// PendingImport is the server-side half of a previewed upload.
type PendingImport struct {
	TokenHash string    `json:"token_hash"`
	Rows      []Row     `json:"rows"`
	Rejected  int       `json:"rejected"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore holds at most one pending import per admin session.
type SessionStore interface {
	// Put replaces any pending import of sessionID.
	Put(ctx context.Context, sessionID string, pending PendingImport, ttl time.Duration) error

	// Take atomically removes and returns the pending import of sessionID if
	// its token hash equals tokenHash. A mismatch leaves the entry in place.
	Take(ctx context.Context, sessionID, tokenHash string) (*PendingImport, error)
}

// MemoryStore is an in-process SessionStore for single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	pending   PendingImport
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Put stores pending under sessionID until ttl elapses.
func (m *MemoryStore) Put(_ context.Context, sessionID string, pending PendingImport, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, id)
		}
	}

	m.entries[sessionID] = memoryEntry{pending: pending, expiresAt: now.Add(ttl)}
	return nil
}

// Take implements SessionStore.
func (m *MemoryStore) Take(_ context.Context, sessionID, tokenHash string) (*PendingImport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[sessionID]
	if !ok {
		return nil, ErrPendingNotFound
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, sessionID)
		return nil, ErrPendingNotFound
	}
	if subtle.ConstantTimeCompare([]byte(entry.pending.TokenHash), []byte(tokenHash)) != 1 {
		return nil, ErrPendingNotFound
	}

	delete(m.entries, sessionID)
	pending := entry.pending
	return &pending, nil
}
