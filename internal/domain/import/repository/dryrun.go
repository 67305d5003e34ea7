package repository

import (
	"context"

	"github.com/google/uuid"
)

// DryRunStore reads duplicates from a real store and acknowledges every
// insert without writing anything.
type DryRunStore struct {
	store   TransactionStore
	pending []*Transaction
}

// NewDryRunStore wraps store.
func NewDryRunStore(store TransactionStore) *DryRunStore {
	return &DryRunStore{store: store}
}

func (s *DryRunStore) FindExistingHashes(ctx context.Context, accountID uuid.UUID, hashes []string) (map[string]struct{}, error) {
	return s.store.FindExistingHashes(ctx, accountID, hashes)
}

func (s *DryRunStore) InsertBatch(_ context.Context, txs []*Transaction) (*InsertResult, error) {
	result := &InsertResult{Inserted: make([]uuid.UUID, 0, len(txs))}
	for _, t := range txs {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		s.pending = append(s.pending, t)
		result.Inserted = append(result.Inserted, t.ID)
	}
	return result, nil
}

// Pending returns the transactions that would have been written.
func (s *DryRunStore) Pending() []*Transaction {
	return s.pending
}
