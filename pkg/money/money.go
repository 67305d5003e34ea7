// Package money provides exact decimal amounts paired with ISO-4217 currency
// codes. Amounts are never held as binary floating point: parsing goes straight
// from text to shopspring/decimal, and go-money supplies currency metadata and
// display formatting.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Supported currency codes (ISO-4217)
const (
	EUR = "EUR" // Euro
	USD = "USD" // US Dollar
	JPY = "JPY" // Japanese Yen (no decimal places)
	GBP = "GBP" // British Pound
)

// DefaultCurrency is used when an import does not name one.
const DefaultCurrency = EUR

var supportedCurrencies = map[string]struct{}{
	EUR: {},
	USD: {},
	JPY: {},
	GBP: {},
}

var (
	ErrEmptyAmount         = errors.New("amount is empty")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// IsSupportedCurrency reports whether code belongs to the closed set of
// currencies accepted by imports and has ISO metadata for formatting.
func IsSupportedCurrency(code string) bool {
	if _, ok := supportedCurrencies[code]; !ok {
		return false
	}
	return money.GetCurrency(code) != nil
}

// SupportedCurrencies returns the accepted currency codes in a stable order.
func SupportedCurrencies() []string {
	return []string{EUR, USD, JPY, GBP}
}

// Amount is an exact signed decimal value in a single currency.
// The zero value is 0 with no currency.
type Amount struct {
	value    decimal.Decimal
	currency string
}

// NewAmount pairs a decimal value with a currency code.
func NewAmount(value decimal.Decimal, currency string) Amount {
	return Amount{value: value, currency: strings.ToUpper(currency)}
}

// Zero returns 0 in currency.
func Zero(currency string) Amount {
	return NewAmount(decimal.Zero, currency)
}

// Parse parses a bank-formatted amount string into an Amount.
// See ParseDecimal for the accepted formats.
func Parse(raw, currency string) (Amount, error) {
	d, err := ParseDecimal(raw)
	if err != nil {
		return Amount{}, err
	}
	return NewAmount(d, currency), nil
}

// Value returns the decimal value.
func (a Amount) Value() decimal.Decimal { return a.value }

// Currency returns the ISO-4217 currency code
func (a Amount) Currency() string { return a.currency }

// IsZero returns true if the amount is zero
func (a Amount) IsZero() bool { return a.value.IsZero() }

// IsExpense returns true for outgoing money (negative amounts).
func (a Amount) IsExpense() bool { return a.value.IsNegative() }

// IsIncome returns true for incoming money (positive amounts).
func (a Amount) IsIncome() bool { return a.value.IsPositive() }

// Add returns a + other. The result keeps a's currency; callers only sum
// amounts of one import, which share a currency.
func (a Amount) Add(other Amount) Amount {
	return Amount{value: a.value.Add(other.value), currency: a.currency}
}

// Neg returns the negated amount.
func (a Amount) Neg() Amount {
	return Amount{value: a.value.Neg(), currency: a.currency}
}

// Equal compares value and currency. 10.5 and 10.50 are equal.
func (a Amount) Equal(other Amount) bool {
	return a.currency == other.currency && a.value.Equal(other.value)
}

// String returns the canonical decimal string (e.g. "-1234.5").
// Trailing zeros are not significant.
func (a Amount) String() string {
	return a.value.String()
}

// MinorUnits converts to the currency's minor unit (cents for EUR, yen for JPY),
// rounding half away from zero when the source carries extra precision.
func (a Amount) MinorUnits() int64 {
	fraction := 2
	if c := money.GetCurrency(a.currency); c != nil {
		fraction = c.Fraction
	}
	return a.value.Shift(int32(fraction)).Round(0).IntPart()
}

// Display returns a formatted string for display (e.g., "€1,234.56")
func (a Amount) Display() string {
	if money.GetCurrency(a.currency) == nil {
		return fmt.Sprintf("%s %s", a.value.StringFixed(2), a.currency)
	}
	return money.New(a.MinorUnits(), a.currency).Display()
}

// ============================================================================
// Parsing
// ============================================================================

var currencySymbols = []string{"R$", "US$", "$", "€", "£", "¥", "₹"}

// ParseDecimal parses bank-formatted amounts into an exact decimal.
//
// Both "." and "," are accepted as decimal separator. When both appear, the
// rightmost one is the decimal separator and the other groups thousands. A
// separator that appears once is the decimal separator ("12,50", "1.234");
// one that repeats groups thousands ("1.234.567"). Spaces and apostrophes are
// always thousands separators. Signs may lead or trail, parentheses mean
// negative, and currency symbols or ISO codes are ignored.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	return ParseDecimalWithSeparator(raw, 0)
}

// ParseDecimalWithSeparator is ParseDecimal with a known decimal separator
// ('.' or ','). The other separator is then always a thousands separator.
// A zero separator means auto-detect.
func ParseDecimalWithSeparator(raw string, decimalSep rune) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = stripCurrencyCode(s)

	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'', '\u2019':
			return -1
		case '\u2212', '\u2013':
			return '-'
		}
		return r
	}, s)

	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "+"):
		s = s[:len(s)-1]
	}

	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
		}
	}

	switch decimalSep {
	case '.':
		s = strings.ReplaceAll(s, ",", "")
	case ',':
		s = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	}

	normalized, err := normalizeSeparators(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators rewrites s (digits, '.' and ',' only) into the
// "1234.56" form decimal.NewFromString expects.
func normalizeSeparators(s string) (string, error) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		decSep, thouSep := ".", ","
		if lastComma > lastDot {
			decSep, thouSep = ",", "."
		}
		if strings.Count(s, decSep) > 1 {
			return "", ErrInvalidAmount
		}
		intPart, frac, _ := strings.Cut(s, decSep)
		if !validGrouping(intPart, thouSep) {
			return "", ErrInvalidAmount
		}
		intPart = strings.ReplaceAll(intPart, thouSep, "")
		if frac == "" {
			return intPart, nil
		}
		return intPart + "." + frac, nil

	case lastDot >= 0 || lastComma >= 0:
		sep := "."
		if lastComma >= 0 {
			sep = ","
		}
		parts := strings.Split(s, sep)
		if len(parts) > 2 {
			if !validGrouping(s, sep) {
				return "", ErrInvalidAmount
			}
			return strings.ReplaceAll(s, sep, ""), nil
		}
		if parts[0] == "" && parts[1] == "" {
			return "", ErrInvalidAmount
		}
		if parts[0] == "" {
			parts[0] = "0"
		}
		if parts[1] == "" {
			return parts[0], nil
		}
		return parts[0] + "." + parts[1], nil
	}
	return s, nil
}

// validGrouping checks "1,234,567" style grouping: a 1–3 digit lead group
// followed by 3-digit groups.
func validGrouping(s, sep string) bool {
	if !strings.Contains(s, sep) {
		return true
	}
	groups := strings.Split(s, sep)
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

func stripCurrencyCode(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 4 {
		return trimmed
	}
	upper := strings.ToUpper(trimmed)
	for code := range supportedCurrencies {
		if strings.HasSuffix(upper, code) {
			return strings.TrimSpace(trimmed[:len(trimmed)-len(code)])
		}
		if strings.HasPrefix(upper, code) {
			return strings.TrimSpace(trimmed[len(code):])
		}
	}
	return trimmed
}
