package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/echo-importer/internal/domain/import/service"
)

// importDefaults holds the command settings shared by every file.
type importDefaults struct {
	UserID           uuid.UUID
	AccountID        uuid.UUID
	Currency         string
	AutoCategorize   bool
	DetectDuplicates bool
	SkipDuplicates   bool
	HeaderLine       int
	Location         *time.Location
}

// fileImporter runs statement files through the import service. It
// satisfies cron.FileImporter for the inbox sweeper.
type fileImporter struct {
	svc      *importservice.ImportService
	defaults importDefaults
	logger   *slog.Logger
}

func newFileImporter(svc *importservice.ImportService, defaults importDefaults, logger *slog.Logger) *fileImporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &fileImporter{svc: svc, defaults: defaults, logger: logger}
}

// ImportFile imports path and discards the outcome.
func (f *fileImporter) ImportFile(ctx context.Context, path string) error {
	outcome, err := f.Import(ctx, path)
	if err != nil {
		return err
	}
	f.logger.Info("statement imported",
		"file", filepath.Base(path),
		"imported", outcome.Result.Imported,
		"skipped", outcome.Result.SkippedRows(),
	)
	return nil
}

// Import reads path and runs one import.
func (f *fileImporter) Import(ctx context.Context, path string) (*importservice.Outcome, error) {
	content, err := readStatement(path)
	if err != nil {
		return nil, err
	}

	cmd := importservice.NewImportTransactionsCommand(f.defaults.UserID, f.defaults.AccountID, content)
	if f.defaults.Currency != "" {
		cmd.Currency = strings.ToUpper(f.defaults.Currency)
	}
	cmd.AutoCategorizationEnabled = f.defaults.AutoCategorize
	cmd.DuplicateDetectionEnabled = f.defaults.DetectDuplicates
	cmd.SkipDuplicates = f.defaults.SkipDuplicates
	cmd.HeaderLine = f.defaults.HeaderLine
	cmd.Location = f.defaults.Location
	cmd.SourceName = filepath.Base(path)

	return f.svc.Import(ctx, cmd)
}

// readStatement returns the CSV text of path. Workbooks are converted from
// their transaction sheet.
func readStatement(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		file, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open workbook: %w", err)
		}
		defer file.Close()
		return parser.WorkbookToCSV(file)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read statement: %w", err)
	}
	return string(data), nil
}
