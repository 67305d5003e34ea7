package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process TransactionStore. It enforces the same
// per-account hash uniqueness as the PostgreSQL schema.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   []*Transaction
	hashes map[uuid.UUID]map[string]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hashes: make(map[uuid.UUID]map[string]struct{})}
}

func (s *MemoryStore) FindExistingHashes(_ context.Context, accountID uuid.UUID, hashes []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing := make(map[string]struct{})
	stored := s.hashes[accountID]
	for _, h := range hashes {
		if _, ok := stored[h]; ok {
			existing[h] = struct{}{}
		}
	}
	return existing, nil
}

func (s *MemoryStore) InsertBatch(_ context.Context, txs []*Transaction) (*InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &InsertResult{}
	now := time.Now()
	for _, t := range txs {
		if t.AccountID == uuid.Nil {
			return result, fmt.Errorf("%w: transaction %s has no account", ErrPersistence, t.Hash)
		}
		stored := s.hashes[t.AccountID]
		if stored == nil {
			stored = make(map[string]struct{})
			s.hashes[t.AccountID] = stored
		}
		if _, ok := stored[t.Hash]; ok && !t.IsDuplicate {
			result.Conflicted = append(result.Conflicted, t.Hash)
			continue
		}

		row := *t
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.Status == "" {
			row.Status = StatusCompleted
		}
		row.CreatedAt, row.UpdatedAt = now, now
		s.rows = append(s.rows, &row)
		stored[row.Hash] = struct{}{}
		result.Inserted = append(result.Inserted, row.ID)
	}
	return result, nil
}

// Transactions returns copies of the rows stored for accountID, in insert order.
func (s *MemoryStore) Transactions(accountID uuid.UUID) []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Transaction
	for _, r := range s.rows {
		if r.AccountID == accountID {
			out = append(out, *r)
		}
	}
	return out
}
