package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool the store uses.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// PostgresStore implements TransactionStore on PostgreSQL.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a new transaction store
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindExistingHashes looks all hashes up in one round-trip.
func (s *PostgresStore) FindExistingHashes(ctx context.Context, accountID uuid.UUID, hashes []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(hashes) == 0 {
		return existing, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT hash FROM transactions WHERE account_id = $1 AND hash = ANY($2)`,
		accountID, hashes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan hash: %w", err)
		}
		existing[hash] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query existing hashes: %w", err)
	}
	return existing, nil
}

const insertTransactionSQL = `
	INSERT INTO transactions (
		id, user_id, account_id, import_job_id, posted_at, description, counterparty,
		payment_reference, transaction_type, source_category, amount, currency_code,
		status, tags, hash, pattern_hash, category_id, notes, is_duplicate, raw_data
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12,
		$13, $14, $15, $16, $17, NULLIF($18, ''), $19, $20
	)
	ON CONFLICT (account_id, hash) WHERE NOT is_duplicate DO NOTHING
	RETURNING id
`

// InsertBatch writes txs in a single database transaction, sending every
// insert in one round-trip. Rows whose hash is already stored for the account
// are skipped and reported in Conflicted. Any other failure rolls the whole
// batch back, so the returned result is empty.
func (s *PostgresStore) InsertBatch(ctx context.Context, txs []*Transaction) (*InsertResult, error) {
	result := &InsertResult{}
	if len(txs) == 0 {
		return result, nil
	}

	batch := &pgx.Batch{}
	for _, t := range txs {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		args, err := insertArgs(t)
		if err != nil {
			return result, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		batch.Queue(insertTransactionSQL, args...)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: failed to begin transaction: %w", ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	written, err := readInserted(br, txs)
	if closeErr := br.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: failed to close batch: %w", ErrPersistence, closeErr)
	}
	if err != nil {
		return result, err
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("%w: failed to commit transaction: %w", ErrPersistence, err)
	}
	return written, nil
}

// readInserted reads one RETURNING row per queued insert, in queue order.
func readInserted(br pgx.BatchResults, txs []*Transaction) (*InsertResult, error) {
	written := &InsertResult{}
	for _, t := range txs {
		var id uuid.UUID
		err := br.QueryRow().Scan(&id)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			written.Conflicted = append(written.Conflicted, t.Hash)
		case err != nil:
			return nil, fmt.Errorf("%w: failed to insert transaction %s: %w", ErrPersistence, t.Hash, err)
		default:
			written.Inserted = append(written.Inserted, id)
		}
	}
	return written, nil
}

func insertArgs(t *Transaction) ([]any, error) {
	raw, err := json.Marshal(t.RawData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode raw data: %w", err)
	}
	status := t.Status
	if status == "" {
		status = StatusCompleted
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	return []any{
		t.ID,
		t.UserID,
		t.AccountID,
		t.ImportJobID,
		t.TransactionDate,
		t.Description,
		t.Counterparty,
		t.PaymentReference,
		t.TransactionType,
		t.SourceCategory,
		t.Amount.Value(),
		t.Amount.Currency(),
		status,
		tags,
		t.Hash,
		t.PatternHash,
		t.CategoryID,
		t.Notes,
		t.IsDuplicate,
		raw,
	}, nil
}
