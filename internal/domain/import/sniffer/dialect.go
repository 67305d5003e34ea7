package sniffer

import (
	"strings"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
)

// RegionalDialect is the number formatting inferred from sample rows. Date
// order is decided by the parser over every row, not from samples.
type RegionalDialect struct {
	DecimalSeparator rune    // '.', ',' or 0 when undecided
	Confidence       float64 // share of amount samples agreeing with the separator
}

// ProbeDialect inspects the mapped amount cells of the sample rows.
func ProbeDialect(headers []string, rows [][]string, columns normalizer.ColumnMap) RegionalDialect {
	var dialect RegionalDialect

	var amounts []string
	for _, col := range []string{columns.Amount, columns.Debit, columns.Credit} {
		amounts = append(amounts, columnSamples(headers, rows, col)...)
	}

	europeanHints, usHints := 0, 0
	for _, v := range amounts {
		switch analyzeAmountFormat(v) {
		case 1:
			europeanHints++
		case -1:
			usHints++
		}
	}
	switch {
	case europeanHints > usHints:
		dialect.DecimalSeparator = ','
		dialect.Confidence = float64(europeanHints) / float64(europeanHints+usHints)
	case usHints > europeanHints:
		dialect.DecimalSeparator = '.'
		dialect.Confidence = float64(usHints) / float64(europeanHints+usHints)
	}
	return dialect
}

func columnSamples(headers []string, rows [][]string, col string) []string {
	if col == "" {
		return nil
	}
	idx := -1
	for i, h := range headers {
		if h == col {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	var samples []string
	for _, row := range rows {
		if idx < len(row) {
			if v := strings.TrimSpace(row[idx]); v != "" {
				samples = append(samples, v)
			}
		}
	}
	return samples
}

// analyzeAmountFormat returns >0 for comma-decimal, <0 for dot-decimal and 0
// when the value does not tell ("1.234" could be either).
func analyzeAmountFormat(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)
	if cleaned == "" {
		return 0
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return 1
		}
		return -1
	case lastComma >= 0:
		if digits := len(cleaned) - lastComma - 1; digits >= 1 && digits <= 2 {
			return 1
		}
	case lastDot >= 0:
		if digits := len(cleaned) - lastDot - 1; digits >= 1 && digits <= 2 {
			return -1
		}
	}
	return 0
}
