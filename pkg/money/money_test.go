package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Parsing Tests
// ============================================================================

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain dot decimal", "374.83", "374.83"},
		{"plain comma decimal", "374,83", "374.83"},
		{"negative", "-12.50", "-12.5"},
		{"explicit plus", "+1200", "1200"},
		{"trailing minus", "45,00-", "-45"},
		{"us thousands", "1,234.56", "1234.56"},
		{"european thousands", "1.234,56", "1234.56"},
		{"repeated dot grouping", "1.234.567", "1234567"},
		{"space thousands", "1 234,56", "1234.56"},
		{"apostrophe thousands", "1'234.56", "1234.56"},
		{"parentheses negative", "(99.99)", "-99.99"},
		{"euro symbol", "€ 12,30", "12.3"},
		{"dollar symbol negative", "-$5.00", "-5"},
		{"trailing iso code", "10.00 EUR", "10"},
		{"leading iso code", "GBP 7.25", "7.25"},
		{"leading decimal", ",5", "0.5"},
		{"integer", "42", "42"},
		{"no float drift", "0.1", "0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimal(tt.input)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseDecimal_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces only", "   "},
		{"letters", "abc"},
		{"sign only", "-"},
		{"broken grouping", "1,23,4.00"},
		{"two decimal separators", "1.2.3,4,5"},
		{"date", "2025-08-06"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDecimal(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestParseDecimal_EmptyIsDistinct(t *testing.T) {
	_, err := ParseDecimal("  ")
	assert.ErrorIs(t, err, ErrEmptyAmount)

	_, err = ParseDecimal("n/a")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseDecimalWithSeparator(t *testing.T) {
	t.Run("comma hint treats dot as grouping", func(t *testing.T) {
		got, err := ParseDecimalWithSeparator("1.234", ',')
		require.NoError(t, err)
		assert.Equal(t, "1234", got.String())
	})

	t.Run("dot hint treats comma as grouping", func(t *testing.T) {
		got, err := ParseDecimalWithSeparator("1,234", '.')
		require.NoError(t, err)
		assert.Equal(t, "1234", got.String())
	})

	t.Run("auto treats single separator as decimal", func(t *testing.T) {
		got, err := ParseDecimalWithSeparator("1,234", 0)
		require.NoError(t, err)
		assert.Equal(t, "1.234", got.String())
	})
}

// ============================================================================
// Amount Tests
// ============================================================================

func TestAmount(t *testing.T) {
	t.Run("string drops insignificant zeros", func(t *testing.T) {
		a, err := Parse("10.50", EUR)
		require.NoError(t, err)
		assert.Equal(t, "10.5", a.String())
	})

	t.Run("equal ignores scale", func(t *testing.T) {
		a, _ := Parse("10.50", EUR)
		b, _ := Parse("10,5", EUR)
		assert.True(t, a.Equal(b))
	})

	t.Run("different currency is not equal", func(t *testing.T) {
		a, _ := Parse("10", EUR)
		b, _ := Parse("10", USD)
		assert.False(t, a.Equal(b))
	})

	t.Run("sign", func(t *testing.T) {
		a, _ := Parse("-3", EUR)
		assert.True(t, a.IsExpense())
		assert.False(t, a.IsIncome())
		assert.True(t, a.Neg().IsIncome())
	})

	t.Run("currency is upper cased", func(t *testing.T) {
		a := NewAmount(decimal.NewFromInt(1), "gbp")
		assert.Equal(t, GBP, a.Currency())
	})
}

func TestAmount_MinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		currency string
		want     int64
	}{
		{"euro cents", "12.34", EUR, 1234},
		{"yen has no minor unit", "10000", JPY, 10000},
		{"rounds extra precision", "12.345", USD, 1235},
		{"negative", "-50.99", GBP, -5099},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.input, tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.MinorUnits())
		})
	}
}

func TestAmount_Display(t *testing.T) {
	a, err := Parse("1234.56", USD)
	require.NoError(t, err)
	assert.Equal(t, "$1,234.56", a.Display())
}

func TestAmount_Add(t *testing.T) {
	total := Zero(EUR)
	for _, raw := range []string{"374.83", "-12.99", "0.16"} {
		a, err := Parse(raw, EUR)
		require.NoError(t, err)
		total = total.Add(a)
	}
	assert.Equal(t, "362", total.String())
	assert.Equal(t, EUR, total.Currency())
	assert.Equal(t, "€362.00", total.Display())
}

func TestIsSupportedCurrency(t *testing.T) {
	for _, code := range SupportedCurrencies() {
		assert.True(t, IsSupportedCurrency(code), code)
	}
	assert.False(t, IsSupportedCurrency("US"))
	assert.False(t, IsSupportedCurrency("BRL"))
	assert.False(t, IsSupportedCurrency("eur"))
}
