// Package normalizer turns raw statement rows into canonical transactions.
package normalizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-importer/pkg/money"
)

// UnknownMerchant is the counterparty given to rows whose source leaves it
// empty (transfers, fees, interest). Such rows are imported, not rejected.
const UnknownMerchant = "Unknown Merchant"

// Field is one cell of a raw row, keyed by its header.
type Field struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// RawRow is a tokenized data row with its header names, in file order.
type RawRow struct {
	Line   int
	Fields []Field
}

// NewRawRow zips headers with a record. Missing trailing cells become empty
// values, extra cells are kept under a positional name.
func NewRawRow(line int, headers, record []string) RawRow {
	n := len(headers)
	if len(record) > n {
		n = len(record)
	}
	fields := make([]Field, n)
	for i := 0; i < n; i++ {
		col := fmt.Sprintf("column_%d", i+1)
		if i < len(headers) && strings.TrimSpace(headers[i]) != "" {
			col = strings.TrimSpace(headers[i])
		}
		val := ""
		if i < len(record) {
			val = record[i]
		}
		fields[i] = Field{Column: col, Value: val}
	}
	return RawRow{Line: line, Fields: fields}
}

// Get returns the trimmed value of the first column named col.
func (r RawRow) Get(col string) string {
	if col == "" {
		return ""
	}
	for _, f := range r.Fields {
		if f.Column == col {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}

// IsBlank reports whether every cell is empty.
func (r RawRow) IsBlank() bool {
	for _, f := range r.Fields {
		if strings.TrimSpace(f.Value) != "" {
			return false
		}
	}
	return true
}

// ColumnMap names the source column for each canonical field. Empty names are
// unmapped. Either Amount or one of Debit/Credit must be set.
type ColumnMap struct {
	Date             string
	Amount           string
	Debit            string
	Credit           string
	Description      string
	Counterparty     string
	PaymentReference string
	TransactionType  string
	Category         string
	Currency         string

	// DateFormat is a Go layout tried before the generic ones.
	DateFormat string
	// DecimalSeparator is '.' or ','; zero auto-detects per value.
	DecimalSeparator rune
	// Location is used for dates without zone information. Nil means UTC.
	Location *time.Location
}

// HasAmount reports whether the map can produce an amount.
func (m ColumnMap) HasAmount() bool {
	return m.Amount != "" || m.Debit != "" || m.Credit != ""
}

// ParsedTransaction is the canonical, bank-independent form of one row.
type ParsedTransaction struct {
	Amount           money.Amount
	Description      string
	TransactionDate  time.Time
	PaymentReference string
	Counterparty     string
	Category         string
	TransactionType  string
	RawData          []Field
	Line             int
}

// RejectedRow explains why a row could not become a transaction.
type RejectedRow struct {
	Line   int
	Reason string
	Raw    []Field
}

func (r *RejectedRow) Error() string {
	return fmt.Sprintf("line %d: %s", r.Line, r.Reason)
}

// Normalize converts one raw row. Amount and date are required; everything
// else degrades to empty values or the UnknownMerchant placeholder.
func Normalize(row RawRow, columns ColumnMap, currency string) (*ParsedTransaction, *RejectedRow) {
	reject := func(format string, args ...any) (*ParsedTransaction, *RejectedRow) {
		return nil, &RejectedRow{Line: row.Line, Reason: fmt.Sprintf(format, args...), Raw: row.Fields}
	}

	dateStr := row.Get(columns.Date)
	if dateStr == "" {
		return reject("missing date")
	}
	date, err := ParseFlexibleDate(dateStr, columns.DateFormat, columns.Location)
	if err != nil {
		return reject("invalid date %q", dateStr)
	}

	amount, err := extractAmount(row, columns)
	if err != nil {
		return reject("%v", err)
	}

	counterparty := CleanDescription(row.Get(columns.Counterparty))
	reference := CleanDescription(row.Get(columns.PaymentReference))
	txType := CleanDescription(row.Get(columns.TransactionType))

	description := firstNonEmpty(
		CleanDescription(row.Get(columns.Description)),
		reference,
		counterparty,
		txType,
	)
	if counterparty == "" {
		counterparty = UnknownMerchant
	}
	if description == "" {
		description = counterparty
	}

	return &ParsedTransaction{
		Amount:           money.NewAmount(amount, currency),
		Description:      description,
		TransactionDate:  date,
		PaymentReference: reference,
		Counterparty:     counterparty,
		Category:         CleanDescription(row.Get(columns.Category)),
		TransactionType:  txType,
		RawData:          row.Fields,
		Line:             row.Line,
	}, nil
}

func extractAmount(row RawRow, columns ColumnMap) (decimal.Decimal, error) {
	if columns.Amount != "" {
		if raw := row.Get(columns.Amount); raw != "" {
			return ParseAmount(raw, columns.DecimalSeparator)
		}
		if columns.Debit == "" && columns.Credit == "" {
			return decimal.Zero, fmt.Errorf("missing amount")
		}
	}
	if columns.Debit == "" && columns.Credit == "" {
		return decimal.Zero, fmt.Errorf("no amount column mapped")
	}
	return NormalizeDebitCredit(row.Get(columns.Debit), row.Get(columns.Credit), columns.DecimalSeparator)
}

// ParseAmount parses a single signed amount cell.
func ParseAmount(raw string, decimalSep rune) (decimal.Decimal, error) {
	d, err := money.ParseDecimalWithSeparator(raw, decimalSep)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}

// NormalizeDebitCredit combines split debit/credit cells into one signed
// amount. Debits are always negative and credits positive, whatever sign the
// bank printed.
func NormalizeDebitCredit(debitStr, creditStr string, decimalSep rune) (decimal.Decimal, error) {
	debitStr = strings.TrimSpace(debitStr)
	creditStr = strings.TrimSpace(creditStr)

	var debit, credit decimal.Decimal
	var err error
	if debitStr != "" {
		if debit, err = ParseAmount(debitStr, decimalSep); err != nil {
			return decimal.Zero, err
		}
	}
	if creditStr != "" {
		if credit, err = ParseAmount(creditStr, decimalSep); err != nil {
			return decimal.Zero, err
		}
	}

	switch {
	case debitStr == "" && creditStr == "":
		return decimal.Zero, fmt.Errorf("missing amount")
	case !debit.IsZero() && !credit.IsZero():
		return credit.Abs().Sub(debit.Abs()), nil
	case !debit.IsZero():
		return debit.Abs().Neg(), nil
	default:
		return credit.Abs(), nil
	}
}

// CleanDescription trims and collapses internal whitespace.
func CleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
