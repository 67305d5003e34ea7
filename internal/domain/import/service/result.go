package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-importer/pkg/money"
	"github.com/FACorreiaa/echo-importer/pkg/storage"
)

// State is a stage of the import pipeline.
type State string

const (
	StateValidating    State = "validating"
	StateParsing       State = "parsing"
	StateDeduplicating State = "deduplicating"
	StateCategorizing  State = "categorizing"
	StateCommitting    State = "committing"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// RowError is a source row that could not be imported.
type RowError struct {
	Line   int
	Reason string
	Raw    []normalizer.Field
}

// ImportResult summarizes an import. It is returned, never persisted.
type ImportResult struct {
	JobID  uuid.UUID
	Layout string
	// TotalRows counts non-blank data rows in the file.
	TotalRows int

	Imported          int
	SkippedDuplicates int
	SkippedInvalid    int
	FlaggedDuplicates int
	Categorized       int

	// Inflow and Outflow total the imported rows held in the import's
	// currency. Rows in another currency are not summed.
	Inflow  money.Amount
	Outflow money.Amount

	Warnings       []string
	RowErrors      []RowError
	TransactionIDs []uuid.UUID

	// Archive is set when the statement was archived.
	Archive *storage.FileInfo
}

// SkippedRows counts every row that was not imported.
func (r *ImportResult) SkippedRows() int {
	return r.SkippedInvalid + r.SkippedDuplicates
}

// Outcome is the terminal state of an import run.
type Outcome struct {
	State State
	// States lists every state visited, in order.
	States   []State
	Result   *ImportResult
	Err      error
	Duration time.Duration
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.States = append(o.States, s)
}
