// Package service provides the import orchestration logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/echo-importer/internal/domain/categorization"
	"github.com/FACorreiaa/echo-importer/internal/domain/import/fingerprint"
	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-importer/internal/domain/import/parser"
	"github.com/FACorreiaa/echo-importer/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-importer/pkg/metrics"
	"github.com/FACorreiaa/echo-importer/pkg/money"
	"github.com/FACorreiaa/echo-importer/pkg/storage"
)

const tracerName = "github.com/FACorreiaa/echo-importer/internal/domain/import/service"

const defaultSourceName = "statement.csv"

// Categorizer assigns categories to a batch of transactions.
type Categorizer interface {
	CategorizeBatch(ctx context.Context, userID uuid.UUID, txs []normalizer.ParsedTransaction) (*categorization.BatchResult, error)
}

// ImportService runs import commands through parse, deduplicate,
// categorize and commit.
type ImportService struct {
	parser      *parser.Parser
	store       repository.TransactionStore
	categorizer Categorizer     // optional
	archive     storage.Archive // optional
	metrics     *metrics.ImportMetrics
	tracer      trace.Tracer
	logger      *slog.Logger
	maxBytes    int64
}

// NewImportService creates an import service. A nil parser uses the built-in
// bank layouts.
func NewImportService(p *parser.Parser, store repository.TransactionStore, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = parser.New(nil, logger)
	}
	return &ImportService{
		parser:   p,
		store:    store,
		tracer:   otel.Tracer(tracerName),
		logger:   logger,
		maxBytes: MaxContentBytes,
	}
}

// WithCategorizer enables auto-categorization.
func (s *ImportService) WithCategorizer(c Categorizer) *ImportService {
	s.categorizer = c
	return s
}

// WithArchive keeps a copy of every committed statement.
func (s *ImportService) WithArchive(a storage.Archive) *ImportService {
	s.archive = a
	return s
}

// WithMetrics records runs and row outcomes.
func (s *ImportService) WithMetrics(m *metrics.ImportMetrics) *ImportService {
	s.metrics = m
	return s
}

// WithMaxContentBytes overrides the content size limit.
func (s *ImportService) WithMaxContentBytes(n int64) *ImportService {
	if n > 0 {
		s.maxBytes = n
	}
	return s
}

// candidate is a row that survived deduplication.
type candidate struct {
	fingerprint.Fingerprinted
	duplicate  bool
	categoryID *uuid.UUID
}

// Import validates and runs cmd.
//
// A command that fails validation returns a nil outcome and a
// *ValidationError; nothing else happens. Otherwise the outcome is always
// returned: Completed with a nil error, or Failed together with the error
// that stopped the run. A Failed outcome still reports every row the store
// acknowledged.
//
// ctx is honored until parsing starts. From then on the run completes
// regardless of cancellation.
func (s *ImportService) Import(ctx context.Context, cmd ImportTransactionsCommand) (*Outcome, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "import.Import", trace.WithAttributes(
		attribute.String("user_id", cmd.UserID.String()),
		attribute.String("account_id", cmd.AccountID.String()),
		attribute.Int("content_bytes", len(cmd.CSVContent)),
	))
	defer span.End()

	outcome := &Outcome{}
	outcome.enter(StateValidating)

	if err := cmd.validationError(s.maxBytes); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid command")
		s.metrics.ObserveRun("invalid", time.Since(start))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("import canceled: %w", err)
		outcome.Result = &ImportResult{}
		outcome.Duration = time.Since(start)
		outcome.enter(StateFailed)
		outcome.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "import canceled")
		s.metrics.ObserveRun(string(StateFailed), outcome.Duration)
		return outcome, err
	}
	ctx = context.WithoutCancel(ctx)

	run := &importRun{
		svc:     s,
		cmd:     cmd,
		outcome: outcome,
		result: &ImportResult{
			JobID:   uuid.New(),
			Inflow:  money.Zero(cmd.Currency),
			Outflow: money.Zero(cmd.Currency),
		},
		logger: s.logger.With(
			"user_id", cmd.UserID,
			"account_id", cmd.AccountID,
		),
	}
	outcome.Result = run.result
	run.logger = run.logger.With("job_id", run.result.JobID)
	span.SetAttributes(attribute.String("job_id", run.result.JobID.String()))

	err := run.execute(ctx)
	outcome.Duration = time.Since(start)
	s.observe(outcome)

	if err != nil {
		outcome.enter(StateFailed)
		outcome.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "import failed")
		run.logger.Error("import failed",
			"state", outcome.States[len(outcome.States)-2],
			"imported", run.result.Imported,
			slog.Any("error", err),
		)
		s.metrics.ObserveRun(string(StateFailed), outcome.Duration)
		return outcome, err
	}

	outcome.enter(StateCompleted)
	span.SetAttributes(
		attribute.Int("imported", run.result.Imported),
		attribute.Int("skipped_rows", run.result.SkippedRows()),
	)
	run.logger.Info("import completed",
		"layout", run.result.Layout,
		"imported", run.result.Imported,
		"skipped_duplicates", run.result.SkippedDuplicates,
		"skipped_invalid", run.result.SkippedInvalid,
		"flagged_duplicates", run.result.FlaggedDuplicates,
		"categorized", run.result.Categorized,
		"duration", outcome.Duration,
	)
	s.metrics.ObserveRun(string(StateCompleted), outcome.Duration)
	return outcome, nil
}

func (s *ImportService) observe(o *Outcome) {
	r := o.Result
	s.metrics.ObserveRows(metrics.RowImported, r.Imported)
	s.metrics.ObserveRows(metrics.RowSkippedDuplicate, r.SkippedDuplicates)
	s.metrics.ObserveRows(metrics.RowSkippedInvalid, r.SkippedInvalid)
	s.metrics.ObserveRows(metrics.RowFlaggedDuplicate, r.FlaggedDuplicates)
	s.metrics.ObserveRows(metrics.RowCategorized, r.Categorized)
}

// importRun carries the state of one Import call.
type importRun struct {
	svc     *ImportService
	cmd     ImportTransactionsCommand
	outcome *Outcome
	result  *ImportResult
	logger  *slog.Logger

	parsed     []normalizer.ParsedTransaction
	candidates []candidate
}

func (r *importRun) execute(ctx context.Context) error {
	steps := []struct {
		state State
		fn    func(context.Context) error
	}{
		{StateParsing, r.parse},
		{StateDeduplicating, r.deduplicate},
		{StateCategorizing, r.categorize},
		{StateCommitting, r.commit},
	}

	for _, step := range steps {
		r.outcome.enter(step.state)
		stepCtx, span := r.svc.tracer.Start(ctx, "import."+string(step.state))
		err := step.fn(stepCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if err != nil {
			return err
		}
	}

	r.archiveStatement(ctx)
	return nil
}

func (r *importRun) parse(ctx context.Context) error {
	parsed, err := r.svc.parser.ParseWithOptions(ctx, r.cmd.CSVContent, parser.Options{
		Currency:   r.cmd.Currency,
		Location:   r.cmd.Location,
		HeaderLine: r.cmd.HeaderLine,
	})
	if err != nil {
		return fmt.Errorf("failed to parse statement: %w", err)
	}

	r.parsed = parsed.Transactions
	r.result.Layout = parsed.Layout
	r.result.TotalRows = parsed.TotalRows
	r.result.Warnings = append(r.result.Warnings, parsed.Warnings...)
	r.result.SkippedInvalid = len(parsed.Rejected)
	for _, rej := range parsed.Rejected {
		r.result.RowErrors = append(r.result.RowErrors, RowError{Line: rej.Line, Reason: rej.Reason, Raw: rej.Raw})
	}
	if n := len(parsed.Rejected); n > 0 {
		r.result.Warnings = append(r.result.Warnings, fmt.Sprintf("%d rows could not be parsed and were skipped", n))
	}
	return nil
}

// deduplicate keeps the first occurrence of every fingerprint in the file,
// then skips or flags rows already stored for the account.
func (r *importRun) deduplicate(ctx context.Context) error {
	if !r.cmd.DuplicateDetectionEnabled {
		r.candidates = make([]candidate, 0, len(r.parsed))
		for _, t := range r.parsed {
			r.candidates = append(r.candidates, candidate{Fingerprinted: fingerprint.Fingerprint(t)})
		}
		return nil
	}

	unique, repeats := fingerprint.Deduplicate(r.parsed)
	r.result.SkippedDuplicates += len(repeats)
	if len(repeats) > 0 {
		r.logger.Debug("duplicate rows within file", "count", len(repeats))
	}

	existing, err := r.svc.store.FindExistingHashes(ctx, r.cmd.AccountID, fingerprint.Hashes(unique))
	if err != nil {
		return fmt.Errorf("failed to look up existing transactions: %w", err)
	}

	r.candidates = make([]candidate, 0, len(unique))
	for _, fp := range unique {
		_, stored := existing[fp.Hash]
		if stored && r.cmd.SkipDuplicates {
			r.result.SkippedDuplicates++
			continue
		}
		r.candidates = append(r.candidates, candidate{Fingerprinted: fp, duplicate: stored})
	}
	return nil
}

func (r *importRun) categorize(ctx context.Context) error {
	if !r.cmd.AutoCategorizationEnabled || r.svc.categorizer == nil || len(r.candidates) == 0 {
		return nil
	}

	txs := make([]normalizer.ParsedTransaction, len(r.candidates))
	for i, c := range r.candidates {
		txs[i] = c.Tx
	}

	batch, err := r.svc.categorizer.CategorizeBatch(ctx, r.cmd.UserID, txs)
	if err != nil {
		r.logger.Warn("auto-categorization unavailable", slog.Any("error", err))
		r.result.Warnings = append(r.result.Warnings, "auto-categorization unavailable; transactions were imported uncategorized")
		return nil
	}

	r.result.Warnings = append(r.result.Warnings, batch.Warnings...)
	for i, a := range batch.Assignments {
		if a != nil && i < len(r.candidates) {
			id := a.CategoryID
			r.candidates[i].categoryID = &id
		}
	}
	return nil
}

// commit hands every candidate to the store in one call and counts only
// what the store acknowledged.
func (r *importRun) commit(ctx context.Context) error {
	if len(r.candidates) == 0 {
		return nil
	}

	rows := make([]*repository.Transaction, len(r.candidates))
	for i, c := range r.candidates {
		rows[i] = r.toTransaction(c)
	}

	ins, err := r.svc.store.InsertBatch(ctx, rows)
	if ins != nil {
		r.count(rows, ins)
	}
	if err != nil {
		if !errors.Is(err, repository.ErrPersistence) {
			err = fmt.Errorf("%w: %w", repository.ErrPersistence, err)
		}
		return fmt.Errorf("failed to commit transactions: %w", err)
	}
	return nil
}

func (r *importRun) count(rows []*repository.Transaction, ins *repository.InsertResult) {
	acked := make(map[uuid.UUID]struct{}, len(ins.Inserted))
	for _, id := range ins.Inserted {
		acked[id] = struct{}{}
	}

	for _, row := range rows {
		if _, ok := acked[row.ID]; !ok {
			continue
		}
		r.result.Imported++
		r.result.TransactionIDs = append(r.result.TransactionIDs, row.ID)
		if row.IsDuplicate {
			r.result.FlaggedDuplicates++
		}
		if row.CategoryID != nil {
			r.result.Categorized++
		}
		r.total(row.Amount)
	}

	if n := len(ins.Conflicted); n > 0 {
		r.result.SkippedDuplicates += n
		r.result.Warnings = append(r.result.Warnings,
			fmt.Sprintf("%d rows were already stored for this account and were skipped", n))
	}
}

func (r *importRun) total(a money.Amount) {
	if a.Currency() != r.cmd.Currency {
		return
	}
	switch {
	case a.IsIncome():
		r.result.Inflow = r.result.Inflow.Add(a)
	case a.IsExpense():
		r.result.Outflow = r.result.Outflow.Add(a)
	}
}

func (r *importRun) toTransaction(c candidate) *repository.Transaction {
	t := c.Tx
	return &repository.Transaction{
		ID:               uuid.New(),
		UserID:           r.cmd.UserID,
		AccountID:        r.cmd.AccountID,
		ImportJobID:      r.result.JobID,
		Amount:           t.Amount,
		Description:      t.Description,
		TransactionDate:  t.TransactionDate,
		PaymentReference: t.PaymentReference,
		Counterparty:     t.Counterparty,
		SourceCategory:   t.Category,
		TransactionType:  t.TransactionType,
		RawData:          t.RawData,
		Status:           repository.StatusCompleted,
		Hash:             c.Hash,
		PatternHash:      c.PatternHash,
		CategoryID:       c.categoryID,
		IsDuplicate:      c.duplicate,
	}
}

// archiveStatement stores the source file once something was committed.
// Failures only produce a warning.
func (r *importRun) archiveStatement(ctx context.Context) {
	if r.svc.archive == nil || r.result.Imported == 0 {
		return
	}

	name := r.cmd.SourceName
	if name == "" {
		name = defaultSourceName
	}
	info, err := r.svc.archive.Store(ctx, r.cmd.AccountID, r.result.JobID, name, strings.NewReader(r.cmd.CSVContent))
	if err != nil {
		r.logger.Warn("failed to archive statement", slog.Any("error", err))
		r.result.Warnings = append(r.result.Warnings, "statement was imported but could not be archived")
		return
	}
	r.result.Archive = info
}
