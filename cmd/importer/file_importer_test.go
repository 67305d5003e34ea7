package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-importer/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/echo-importer/internal/domain/import/service"
	"github.com/FACorreiaa/echo-importer/pkg/cron"
)

const statement = "Booking Date;Partner Name;Amount;Currency;Payment Reference;Type\n" +
	"2025-08-06;;374.83;EUR;;Credit Transfer\n" +
	"2025-08-07;AMAZON EU;-12,99;EUR;ORDER 123;Card Payment\n"

func newTestImporter(t *testing.T) (*fileImporter, *repository.MemoryStore, uuid.UUID) {
	t.Helper()
	store := repository.NewMemoryStore()
	account := uuid.New()
	svc := importservice.NewImportService(nil, store, nil)
	imp := newFileImporter(svc, importDefaults{
		UserID:           uuid.New(),
		AccountID:        account,
		Currency:         "eur",
		DetectDuplicates: true,
		SkipDuplicates:   true,
		Location:         time.UTC,
	}, nil)
	return imp, store, account
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// ============================================================================
// File importer
// ============================================================================

func TestFileImporter_CSV(t *testing.T) {
	imp, store, account := newTestImporter(t)
	path := writeFile(t, t.TempDir(), "george.csv", []byte(statement))

	outcome, err := imp.Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, importservice.StateCompleted, outcome.State)
	assert.Equal(t, 2, outcome.Result.Imported)

	txs := store.Transactions(account)
	require.Len(t, txs, 2)
	assert.Equal(t, "EUR", txs[0].Amount.Currency())
	assert.Equal(t, normalizer.UnknownMerchant, txs[0].Counterparty)
}

func TestFileImporter_SecondRunSkipsEverything(t *testing.T) {
	imp, store, account := newTestImporter(t)
	path := writeFile(t, t.TempDir(), "george.csv", []byte(statement))

	require.NoError(t, imp.ImportFile(context.Background(), path))
	outcome, err := imp.Import(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.Result.Imported)
	assert.Equal(t, 2, outcome.Result.SkippedDuplicates)
	assert.Len(t, store.Transactions(account), 2)
}

func TestFileImporter_Workbook(t *testing.T) {
	imp, store, account := newTestImporter(t)

	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Date", "Description", "Amount"},
		{"2025-08-06", "Coffee", "-3.50"},
		{"2025-08-07", "Salary", "1500.00"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "statement.XLSX", buf.Bytes())
	outcome, err := imp.Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Result.Imported)
	assert.Len(t, store.Transactions(account), 2)
}

func TestFileImporter_MissingFile(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	_, err := imp.Import(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "failed to read statement")
}

func TestFileImporter_ParseFailure(t *testing.T) {
	imp, _, _ := newTestImporter(t)
	path := writeFile(t, t.TempDir(), "notes.txt", []byte("hello\nworld\n"))

	err := imp.ImportFile(context.Background(), path)
	assert.Error(t, err)
}

func TestFileImporter_InboxSweep(t *testing.T) {
	imp, store, account := newTestImporter(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", []byte(statement))
	writeFile(t, dir, "b.txt", []byte("hello\nworld\n"))

	sched := cron.NewScheduler(cron.Config{Dir: dir, Schedule: "@hourly"}, imp, nil)
	res, err := sched.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.csv"}, res.Processed)
	assert.Equal(t, []string{"b.txt"}, res.Failed)
	assert.FileExists(t, filepath.Join(dir, cron.ProcessedDir, "a.csv"))
	assert.FileExists(t, filepath.Join(dir, cron.FailedDir, "b.txt"))
	assert.Len(t, store.Transactions(account), 2)
}

// ============================================================================
// Output
// ============================================================================

func TestPrintSummary(t *testing.T) {
	imp, _, _ := newTestImporter(t)
	path := writeFile(t, t.TempDir(), "george.csv", []byte(statement+"not a date;LIDL;-3,00;EUR;;Card Payment\n"))

	outcome, err := imp.Import(context.Background(), path)
	require.NoError(t, err)

	var buf bytes.Buffer
	printSummary(&buf, outcome, true)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "[dry run] import "))
	assert.Contains(t, out, "imported:            2")
	assert.Contains(t, out, "skipped invalid:     1")
	assert.Contains(t, out, "warning: 1 rows could not be parsed and were skipped")
	assert.Contains(t, out, "inflow:              €374.83")
	assert.Contains(t, out, "outflow:")
}

func TestPrintSummary_NothingImported(t *testing.T) {
	imp, _, _ := newTestImporter(t)
	path := writeFile(t, t.TempDir(), "george.csv", []byte(statement))

	_, err := imp.Import(context.Background(), path)
	require.NoError(t, err)
	outcome, err := imp.Import(context.Background(), path)
	require.NoError(t, err)

	var buf bytes.Buffer
	printSummary(&buf, outcome, false)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "import "))
	assert.Contains(t, out, "imported:            0")
	assert.NotContains(t, out, "inflow:")
}

func TestImportDependencyOptions(t *testing.T) {
	assert.Equal(t, dependencyOptions{DryRun: true, SkipMigrations: true}, importDependencyOptions(true))
	assert.Equal(t, dependencyOptions{}, importDependencyOptions(false))
}

func TestWriteRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejects.csv")
	err := writeRejects(path, []importservice.RowError{{
		Line:   4,
		Reason: "invalid date",
		Raw:    []normalizer.Field{{Column: "Booking Date", Value: "soon"}},
	}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "invalid date")
	assert.Contains(t, string(data), "soon")
}
