// Package parser drives format detection and row normalization over a whole
// bank statement.
package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-importer/internal/domain/import/sniffer"
	"github.com/FACorreiaa/echo-importer/pkg/money"
)

// dialectConfidence is the share of amount samples that must agree before a
// sniffed decimal separator is applied to the whole file.
const dialectConfidence = 0.8

const ctxCheckInterval = 500

// Options tunes a single Parse call.
type Options struct {
	// Currency is attached to every amount. Defaults to money.DefaultCurrency.
	Currency string
	// Location is used for dates without zone. Nil means UTC.
	Location *time.Location
	// HeaderLine forces the 1-based line of the header row. Zero auto-detects.
	HeaderLine int
	// Delimiter forces the field delimiter. Zero auto-detects.
	Delimiter rune
}

// CSVParseResult is everything learned from one file. Row-level problems are
// reported here and never returned as errors.
type CSVParseResult struct {
	Transactions []normalizer.ParsedTransaction
	Warnings     []string
	SkippedRows  int
	Rejected     []normalizer.RejectedRow
	Layout       string
	// HeaderFingerprint identifies the header row independently of case and
	// spacing, so repeated exports from one bank share it.
	HeaderFingerprint string
	TotalRows         int
	Encoding          string
	Delimiter         rune
}

// Parser turns statement content into canonical transactions.
type Parser struct {
	registry *sniffer.Registry
	logger   *slog.Logger
}

// New creates a parser. A nil registry uses the built-in layouts.
func New(registry *sniffer.Registry, logger *slog.Logger) *Parser {
	if registry == nil {
		registry = sniffer.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{registry: registry, logger: logger}
}

// Parse parses content with default options.
func (p *Parser) Parse(ctx context.Context, content string) (*CSVParseResult, error) {
	return p.ParseWithOptions(ctx, content, Options{})
}

// ParseWithOptions parses content. Only structural problems are returned as
// errors: empty content, unreadable encoding or a missing header row.
func (p *Parser) ParseWithOptions(ctx context.Context, content string, opts Options) (*CSVParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = money.DefaultCurrency
	}

	cfg, err := sniffer.DetectConfigWithOptions([]byte(content), &sniffer.DetectOptions{
		HeaderRowIndex: opts.HeaderLine - 1,
		Delimiter:      opts.Delimiter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect file format: %w", err)
	}

	match := p.registry.Match(cfg.Headers)
	columns := match.Columns
	columns.Location = opts.Location

	dialect := sniffer.ProbeDialect(cfg.Headers, cfg.SampleRows, columns)
	if columns.DecimalSeparator == 0 && dialect.Confidence >= dialectConfidence {
		columns.DecimalSeparator = dialect.DecimalSeparator
	}

	result := &CSVParseResult{
		Layout:            match.Layout,
		HeaderFingerprint: cfg.Fingerprint,
		Encoding:          cfg.Encoding,
		Delimiter:         cfg.Delimiter,
		Warnings:          append([]string(nil), match.Warnings...),
	}

	rows, err := readRows(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// The date order is decided once for the whole file, so a row is never
	// read day-first in one export and month-first in another.
	if columns.DateFormat == "" && columns.Date != "" {
		dates := make([]string, 0, len(rows))
		for _, r := range rows {
			if r.malformed == nil {
				dates = append(dates, r.row.Get(columns.Date))
			}
		}
		columns.DateFormat = normalizer.DetectDateFormat(dates)
		if columns.DateFormat == "" && normalizer.AnyDate(dates) {
			result.Warnings = append(result.Warnings, "dates in this file do not share one format; each date was read on its own")
		}
	}

	foreign := make(map[string]int)
	for n, r := range rows {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		result.TotalRows++
		if r.malformed != nil {
			result.SkippedRows++
			result.Rejected = append(result.Rejected, *r.malformed)
			continue
		}
		row := r.row

		tx, rejected := normalizer.Normalize(row, columns, currency)
		if rejected != nil {
			result.SkippedRows++
			result.Rejected = append(result.Rejected, *rejected)
			continue
		}
		if code := strings.ToUpper(row.Get(columns.Currency)); code != "" && code != currency {
			foreign[code]++
		}
		result.Transactions = append(result.Transactions, *tx)
	}

	result.Warnings = append(result.Warnings, currencyWarnings(foreign, currency)...)
	if result.TotalRows == 0 {
		result.Warnings = append(result.Warnings, "file contains a header row but no data rows")
	}

	p.logger.Debug("statement parsed",
		"layout", result.Layout,
		"header_fingerprint", result.HeaderFingerprint,
		"date_format", columns.DateFormat,
		"encoding", result.Encoding,
		"delimiter", string(result.Delimiter),
		"rows", result.TotalRows,
		"parsed", len(result.Transactions),
		"skipped", result.SkippedRows,
	)
	return result, nil
}

// sourceRow is a data row read from the file, or the reason it could not be.
type sourceRow struct {
	row       normalizer.RawRow
	malformed *normalizer.RejectedRow
}

// readRows tokenizes every non-blank data row after the header.
func readRows(ctx context.Context, cfg *sniffer.FileConfig) ([]sourceRow, error) {
	reader := sniffer.NewReader(strings.NewReader(cfg.Body), cfg.Delimiter)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", sniffer.ErrNoHeadersFound)
	}

	var rows []sourceRow
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("failed to read row: %w", err)
			}
			rows = append(rows, sourceRow{malformed: &normalizer.RejectedRow{
				Line:   cfg.SkipLines + perr.StartLine,
				Reason: fmt.Sprintf("malformed row: %v", perr.Err),
			}})
			continue
		}

		line, _ := reader.FieldPos(0)
		row := normalizer.NewRawRow(cfg.SkipLines+line, cfg.Headers, record)
		if row.IsBlank() {
			continue
		}
		rows = append(rows, sourceRow{row: row})
	}
}

// currencyWarnings reports rows whose currency column disagrees with the
// import currency. Amounts are never converted.
func currencyWarnings(foreign map[string]int, currency string) []string {
	codes := make([]string, 0, len(foreign))
	for code := range foreign {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	warnings := make([]string, 0, len(codes))
	for _, code := range codes {
		warnings = append(warnings, fmt.Sprintf("%d rows are in %s but were recorded as %s", foreign[code], code, currency))
	}
	return warnings
}
