// Package repository persists imported transactions.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-importer/pkg/money"
)

// ErrPersistence wraps every failure to durably write a batch.
var ErrPersistence = errors.New("persistence failure")

// Transaction statuses
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusHidden    = "hidden"
)

// Transaction is a persisted, imported transaction.
type Transaction struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	AccountID   uuid.UUID
	ImportJobID uuid.UUID

	Amount           money.Amount
	Description      string
	TransactionDate  time.Time
	PaymentReference string
	Counterparty     string
	SourceCategory   string
	TransactionType  string
	RawData          []normalizer.Field

	Status      string
	Tags        []string
	Hash        string
	PatternHash string
	CategoryID  *uuid.UUID
	Notes       string
	IsDuplicate bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InsertResult reports what a store durably wrote.
type InsertResult struct {
	// Inserted holds the IDs of written rows, in input order.
	Inserted []uuid.UUID
	// Conflicted holds the hashes of rows that lost a uniqueness race with a
	// row already stored for the same account.
	Conflicted []string
}

// TransactionStore is the persistence boundary of an import.
type TransactionStore interface {
	// FindExistingHashes returns the subset of hashes already stored for the account.
	FindExistingHashes(ctx context.Context, accountID uuid.UUID, hashes []string) (map[string]struct{}, error)
	// InsertBatch writes txs. On error the result still reports whatever
	// was durably written.
	InsertBatch(ctx context.Context, txs []*Transaction) (*InsertResult, error)
}
