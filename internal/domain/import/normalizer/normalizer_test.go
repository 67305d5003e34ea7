package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var georgeColumns = ColumnMap{
	Date:             "Booking Date",
	Amount:           "Amount",
	Counterparty:     "Partner Name",
	PaymentReference: "Payment Reference",
	TransactionType:  "Type",
	Currency:         "Currency",
	DateFormat:       "2006-01-02",
	DecimalSeparator: '.',
}

func georgeRow(line int, values ...string) RawRow {
	headers := []string{"Booking Date", "Partner Name", "Amount", "Currency", "Payment Reference", "Type"}
	return NewRawRow(line, headers, values)
}

func TestNormalize(t *testing.T) {
	t.Run("empty partner resolves to placeholder", func(t *testing.T) {
		row := georgeRow(2, "2025-08-06", "", "374.83", "EUR", "", "Credit Transfer")

		tx, rej := Normalize(row, georgeColumns, "EUR")
		require.Nil(t, rej)
		require.NotNil(t, tx)

		assert.Equal(t, UnknownMerchant, tx.Counterparty)
		assert.Equal(t, "Credit Transfer", tx.Description)
		assert.Equal(t, "374.83", tx.Amount.String())
		assert.Equal(t, "EUR", tx.Amount.Currency())
		assert.Equal(t, time.Date(2025, 8, 6, 0, 0, 0, 0, time.UTC), tx.TransactionDate)
		assert.Equal(t, 2, tx.Line)
	})

	t.Run("payment reference beats partner for description", func(t *testing.T) {
		row := georgeRow(3, "2025-08-07", "  BILLA  AG ", "-12.40", "EUR", "Einkauf   Filiale 22", "Card Payment")

		tx, rej := Normalize(row, georgeColumns, "EUR")
		require.Nil(t, rej)
		assert.Equal(t, "Einkauf Filiale 22", tx.Description)
		assert.Equal(t, "BILLA AG", tx.Counterparty)
		assert.Equal(t, "Einkauf Filiale 22", tx.PaymentReference)
		assert.True(t, tx.Amount.IsExpense())
	})

	t.Run("partner used when no reference", func(t *testing.T) {
		row := georgeRow(4, "2025-08-07", "Spotify", "-9.99", "EUR", "", "Direct Debit")

		tx, rej := Normalize(row, georgeColumns, "EUR")
		require.Nil(t, rej)
		assert.Equal(t, "Spotify", tx.Description)
	})

	t.Run("no descriptive field at all", func(t *testing.T) {
		row := georgeRow(5, "2025-08-07", "", "1.00", "EUR", "", "")

		tx, rej := Normalize(row, georgeColumns, "EUR")
		require.Nil(t, rej)
		assert.Equal(t, UnknownMerchant, tx.Description)
	})

	t.Run("currency comes from the caller", func(t *testing.T) {
		row := georgeRow(6, "2025-08-07", "Shop", "5.00", "USD", "", "")

		tx, rej := Normalize(row, georgeColumns, "GBP")
		require.Nil(t, rej)
		assert.Equal(t, "GBP", tx.Amount.Currency())
	})

	t.Run("raw data preserved in order", func(t *testing.T) {
		row := georgeRow(7, "2025-08-07", "Shop", "5.00", "EUR", "ref", "Card")

		tx, rej := Normalize(row, georgeColumns, "EUR")
		require.Nil(t, rej)
		require.Len(t, tx.RawData, 6)
		assert.Equal(t, Field{Column: "Booking Date", Value: "2025-08-07"}, tx.RawData[0])
		assert.Equal(t, Field{Column: "Type", Value: "Card"}, tx.RawData[5])
	})
}

func TestNormalize_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		row    RawRow
		reason string
	}{
		{"missing date", georgeRow(2, "", "Shop", "5.00", "EUR", "", ""), "missing date"},
		{"bad date", georgeRow(3, "yesterday", "Shop", "5.00", "EUR", "", ""), "invalid date"},
		{"missing amount", georgeRow(4, "2025-08-06", "Shop", "", "EUR", "", ""), "missing amount"},
		{"bad amount", georgeRow(5, "2025-08-06", "Shop", "five", "EUR", "", ""), "invalid amount"},
		{"short row", georgeRow(6, "2025-08-06", "Shop"), "missing amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, rej := Normalize(tt.row, georgeColumns, "EUR")
			assert.Nil(t, tx)
			require.NotNil(t, rej)
			assert.Contains(t, rej.Reason, tt.reason)
			assert.Equal(t, tt.row.Line, rej.Line)
			assert.Equal(t, tt.row.Fields, rej.Raw)
			assert.Contains(t, rej.Error(), "line")
		})
	}
}

func TestNormalize_DebitCredit(t *testing.T) {
	cols := ColumnMap{
		Date:        "Data",
		Description: "Descrição",
		Debit:       "Débito",
		Credit:      "Crédito",
	}
	headers := []string{"Data", "Descrição", "Débito", "Crédito"}

	t.Run("debit is negative", func(t *testing.T) {
		tx, rej := Normalize(NewRawRow(2, headers, []string{"06-08-2025", "COMPRA LIDL", "23,10", ""}), cols, "EUR")
		require.Nil(t, rej)
		assert.Equal(t, "-23.1", tx.Amount.String())
		assert.Equal(t, "COMPRA LIDL", tx.Description)
		assert.Equal(t, UnknownMerchant, tx.Counterparty)
	})

	t.Run("credit is positive", func(t *testing.T) {
		tx, rej := Normalize(NewRawRow(3, headers, []string{"06-08-2025", "SALARIO", "", "1.500,00"}), cols, "EUR")
		require.Nil(t, rej)
		assert.Equal(t, "1500", tx.Amount.String())
	})

	t.Run("both empty rejects", func(t *testing.T) {
		_, rej := Normalize(NewRawRow(4, headers, []string{"06-08-2025", "NOTHING", "", ""}), cols, "EUR")
		require.NotNil(t, rej)
		assert.Contains(t, rej.Reason, "missing amount")
	})
}

func TestNormalizeDebitCredit(t *testing.T) {
	tests := []struct {
		name   string
		debit  string
		credit string
		want   string
	}{
		{"debit only", "10.00", "", "-10"},
		{"signed debit stays negative", "-10.00", "", "-10"},
		{"credit only", "", "25.5", "25.5"},
		{"both present nets out", "10", "25", "15"},
		{"zero debit with credit", "0.00", "3", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDebitCredit(tt.debit, tt.credit, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNewRawRow(t *testing.T) {
	row := NewRawRow(9, []string{"A", "", "C"}, []string{"1", "2", "3", "4"})

	require.Len(t, row.Fields, 4)
	assert.Equal(t, "column_2", row.Fields[1].Column)
	assert.Equal(t, "column_4", row.Fields[3].Column)
	assert.Equal(t, "3", row.Get("C"))
	assert.Equal(t, "", row.Get("missing"))
	assert.False(t, row.IsBlank())
	assert.True(t, NewRawRow(1, []string{"A", "B"}, []string{" ", ""}).IsBlank())
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "a b c", CleanDescription("  a \t b\n c  "))
	assert.Equal(t, "", CleanDescription("   "))
}
