package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-importer/pkg/money"
)

func tx(t *testing.T, amount, date, description, counterparty string) normalizer.ParsedTransaction {
	t.Helper()
	a, err := money.Parse(amount, money.EUR)
	require.NoError(t, err)
	d, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	return normalizer.ParsedTransaction{
		Amount:          a,
		TransactionDate: d,
		Description:     description,
		Counterparty:    counterparty,
	}
}

func TestProjection(t *testing.T) {
	got := projection(tx(t, "374.830", "2025-08-06", "  Credit   TRANSFER ", ""))
	assert.Equal(t, "amount=374.83\ndate=2025-08-06\ndescription=credit transfer", got)
}

func TestHash(t *testing.T) {
	base := tx(t, "10.50", "2025-08-06", "Coffee Shop", "Café Central")

	t.Run("hex sha256", func(t *testing.T) {
		h := Hash(base)
		assert.Len(t, h, 64)
		assert.Regexp(t, "^[0-9a-f]+$", h)
	})

	t.Run("cosmetic differences collide", func(t *testing.T) {
		variants := []normalizer.ParsedTransaction{
			tx(t, "10.5", "2025-08-06", "Coffee Shop", ""),
			tx(t, "10,50", "2025-08-06", "  coffee   shop  ", "Other"),
			tx(t, "10.500", "2025-08-06", "COFFEE SHOP", ""),
		}
		for _, v := range variants {
			assert.Equal(t, Hash(base), Hash(v))
		}
	})

	t.Run("time of day is ignored", func(t *testing.T) {
		later := base
		later.TransactionDate = base.TransactionDate.Add(15 * time.Hour)
		assert.Equal(t, Hash(base), Hash(later))
	})

	t.Run("material differences do not collide", func(t *testing.T) {
		others := []normalizer.ParsedTransaction{
			tx(t, "-10.50", "2025-08-06", "Coffee Shop", ""),
			tx(t, "10.51", "2025-08-06", "Coffee Shop", ""),
			tx(t, "10.50", "2025-08-07", "Coffee Shop", ""),
			tx(t, "10.50", "2025-08-06", "Coffee Shop 2", ""),
		}
		for _, o := range others {
			assert.NotEqual(t, Hash(base), Hash(o))
		}
	})

	t.Run("unicode forms collide", func(t *testing.T) {
		composed := tx(t, "1", "2025-08-06", "Caf\u00e9", "")
		decomposed := tx(t, "1", "2025-08-06", "Cafe\u0301", "")
		assert.Equal(t, Hash(composed), Hash(decomposed))
	})
}

func TestPatternHash(t *testing.T) {
	a := tx(t, "-12.00", "2025-08-01", "Netflix subscription", "COMPRA NETFLIX.COM 123456")
	b := tx(t, "-15.99", "2025-09-01", "NETFLIX  Subscription", "Netflix.com")

	assert.Equal(t, PatternHash(a), PatternHash(b))
	assert.NotEqual(t, Hash(a), Hash(b))

	t.Run("merchant takes part", func(t *testing.T) {
		c := tx(t, "-12.00", "2025-08-01", "Netflix subscription", "Disney")
		assert.NotEqual(t, PatternHash(a), PatternHash(c))
	})

	t.Run("unknown merchant is treated as empty", func(t *testing.T) {
		u := tx(t, "1", "2025-08-01", "Transfer", normalizer.UnknownMerchant)
		e := tx(t, "1", "2025-08-01", "Transfer", "")
		assert.Equal(t, PatternHash(u), PatternHash(e))
	})

	t.Run("independent of hash", func(t *testing.T) {
		assert.NotEqual(t, Hash(a), PatternHash(a))
	})
}

func TestDeduplicate(t *testing.T) {
	rows := []normalizer.ParsedTransaction{
		tx(t, "1.00", "2025-08-01", "A", ""),
		tx(t, "2.00", "2025-08-01", "B", ""),
		tx(t, "1.0", "2025-08-01", " a ", ""),
		tx(t, "3.00", "2025-08-02", "C", ""),
		tx(t, "2", "2025-08-01", "b", ""),
	}
	rows[0].Line, rows[2].Line = 2, 4

	unique, dups := Deduplicate(rows)
	require.Len(t, unique, 3)
	require.Len(t, dups, 2)

	assert.Equal(t, []string{"A", "B", "C"}, []string{
		unique[0].Tx.Description, unique[1].Tx.Description, unique[2].Tx.Description,
	})
	assert.Equal(t, 2, unique[0].Tx.Line, "first occurrence wins")
	assert.Equal(t, 4, dups[0].Tx.Line)
	assert.Equal(t, unique[0].Hash, dups[0].Hash)
	assert.Equal(t, unique[1].Hash, dups[1].Hash)

	assert.Equal(t, []string{unique[0].Hash, unique[1].Hash, unique[2].Hash}, Hashes(unique))
}

func TestDeduplicate_Empty(t *testing.T) {
	unique, dups := Deduplicate(nil)
	assert.Empty(t, unique)
	assert.Empty(t, dups)
}
