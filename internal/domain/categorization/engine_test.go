package categorization

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
)

func txn(counterparty, description string) normalizer.ParsedTransaction {
	return normalizer.ParsedTransaction{Counterparty: counterparty, Description: description}
}

func TestEngine_FirstMatchWins(t *testing.T) {
	shopping := uuid.New()
	retail := uuid.New()

	rules := []CategorizationRule{
		{ID: uuid.New(), Priority: 2, DescriptionPattern: "Amazon", CategoryID: retail, IsActive: true},
		{ID: uuid.New(), Priority: 1, Merchant: "Amazon", CategoryID: shopping, IsActive: true},
	}
	engine := NewEngine(rules)

	t.Run("lower priority number wins", func(t *testing.T) {
		got, ok := engine.Categorize(txn("Amazon", "Amazon Marketplace order 123"))
		require.True(t, ok)
		assert.Equal(t, shopping, got)
	})

	t.Run("later rule applies when earlier does not match", func(t *testing.T) {
		got, ok := engine.Categorize(txn("AMZN Mktp", "amazon marketplace"))
		require.True(t, ok)
		assert.Equal(t, retail, got)
	})

	t.Run("match reports the rule", func(t *testing.T) {
		res, ok := engine.Match(txn("Amazon", "whatever"))
		require.True(t, ok)
		assert.Equal(t, rules[1].ID, res.RuleID)
	})

	t.Run("no match", func(t *testing.T) {
		got, ok := engine.Categorize(txn("Lidl", "groceries"))
		assert.False(t, ok)
		assert.Equal(t, uuid.Nil, got)
	})
}

func TestEngine_TiesBrokenByID(t *testing.T) {
	first := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	second := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	catA, catB := uuid.New(), uuid.New()

	engine := NewEngine([]CategorizationRule{
		{ID: second, Priority: 5, DescriptionPattern: "coffee", CategoryID: catB, IsActive: true},
		{ID: first, Priority: 5, DescriptionPattern: "coffee", CategoryID: catA, IsActive: true},
	})

	got, ok := engine.Categorize(txn("", "Morning coffee"))
	require.True(t, ok)
	assert.Equal(t, catA, got)
}

func TestEngine_Predicates(t *testing.T) {
	cat := uuid.New()

	tests := []struct {
		name  string
		rule  CategorizationRule
		tx    normalizer.ParsedTransaction
		match bool
	}{
		{
			name:  "merchant is case-insensitive and trimmed",
			rule:  CategorizationRule{Merchant: "  AMAZON "},
			tx:    txn("amazon", "x"),
			match: true,
		},
		{
			name:  "merchant must be equal, not contained",
			rule:  CategorizationRule{Merchant: "Amazon"},
			tx:    txn("Amazon EU", "x"),
			match: false,
		},
		{
			name:  "description substring",
			rule:  CategorizationRule{DescriptionPattern: "Netflix"},
			tx:    txn("", "COMPRA NETFLIX.COM  Lisboa"),
			match: true,
		},
		{
			name:  "pattern whitespace is normalized",
			rule:  CategorizationRule{DescriptionPattern: "pingo   doce"},
			tx:    txn("", "PINGO DOCE ALVALADE"),
			match: true,
		},
		{
			name:  "both conditions are required",
			rule:  CategorizationRule{Merchant: "Lidl", DescriptionPattern: "groceries"},
			tx:    txn("Lidl", "household"),
			match: false,
		},
		{
			name:  "both conditions hold",
			rule:  CategorizationRule{Merchant: "Lidl", DescriptionPattern: "groceries"},
			tx:    txn("LIDL", "Weekly groceries"),
			match: true,
		},
		{
			name:  "regex",
			rule:  CategorizationRule{DescriptionPattern: `^uber\s+trip`, IsRegex: true},
			tx:    txn("", "UBER   TRIP 4411"),
			match: true,
		},
		{
			name:  "regex anchored mismatch",
			rule:  CategorizationRule{DescriptionPattern: `^trip`, IsRegex: true},
			tx:    txn("", "uber trip"),
			match: false,
		},
		{
			name:  "unknown merchant sentinel does not match a real merchant",
			rule:  CategorizationRule{Merchant: "Amazon"},
			tx:    txn(normalizer.UnknownMerchant, "Amazon"),
			match: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			rule.ID = uuid.New()
			rule.CategoryID = cat
			rule.IsActive = true

			_, ok := NewEngine([]CategorizationRule{rule}).Categorize(tt.tx)
			assert.Equal(t, tt.match, ok)
		})
	}
}

func TestEngine_InertRules(t *testing.T) {
	cat := uuid.New()

	engine := NewEngine([]CategorizationRule{
		{ID: uuid.New(), Priority: 1, CategoryID: cat, IsActive: true},
		{ID: uuid.New(), Priority: 2, DescriptionPattern: "   ", CategoryID: cat, IsActive: true},
		{ID: uuid.New(), Priority: 3, DescriptionPattern: "([", IsRegex: true, CategoryID: cat, IsActive: true},
		{ID: uuid.New(), Priority: 4, DescriptionPattern: "shop", CategoryID: cat, IsActive: false},
	})

	assert.Zero(t, engine.RuleCount())
	require.Len(t, engine.Warnings(), 1)
	assert.Contains(t, engine.Warnings()[0], "invalid pattern")

	_, ok := engine.Categorize(txn("shop", "shop"))
	assert.False(t, ok)
}

func TestEngine_OverlappingPatterns(t *testing.T) {
	prime, general := uuid.New(), uuid.New()

	engine := NewEngine([]CategorizationRule{
		{ID: uuid.New(), Priority: 2, DescriptionPattern: "amazon", CategoryID: general, IsActive: true},
		{ID: uuid.New(), Priority: 1, DescriptionPattern: "amazon prime", CategoryID: prime, IsActive: true},
	})

	got, _ := engine.Categorize(txn("", "AMAZON PRIME VIDEO"))
	assert.Equal(t, prime, got)

	got, _ = engine.Categorize(txn("", "amazon.de order"))
	assert.Equal(t, general, got)
}

func TestEngine_Deterministic(t *testing.T) {
	var rules []CategorizationRule
	for i := 0; i < 50; i++ {
		rules = append(rules, CategorizationRule{
			ID:                 uuid.New(),
			Priority:           i % 3,
			DescriptionPattern: "market",
			CategoryID:         uuid.New(),
			IsActive:           true,
		})
	}
	tx := txn("", "Super market 24")

	want, ok := NewEngine(rules).Categorize(tx)
	require.True(t, ok)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]CategorizationRule(nil), rules...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		engine := NewEngine(shuffled)
		for j := 0; j < 5; j++ {
			got, _ := engine.Categorize(tx)
			assert.Equal(t, want, got)
		}
	}
}

func TestEngine_CategorizeBatch(t *testing.T) {
	cat := uuid.New()
	engine := NewEngine([]CategorizationRule{
		{ID: uuid.New(), DescriptionPattern: "rent", CategoryID: cat, IsActive: true},
	})

	results := engine.CategorizeBatch([]normalizer.ParsedTransaction{
		txn("", "Monthly rent"),
		txn("", "Coffee"),
		txn("", "RENT august"),
	})
	require.Len(t, results, 3)
	require.NotNil(t, results[0])
	assert.Equal(t, cat, results[0].CategoryID)
	assert.Nil(t, results[1])
	require.NotNil(t, results[2])
}

func TestEngine_Empty(t *testing.T) {
	engine := NewEngine(nil)
	_, ok := engine.Categorize(txn("a", "b"))
	assert.False(t, ok)
	assert.Empty(t, engine.CategorizeBatch(nil))
}

func TestSortRules(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	c := uuid.MustParse("00000000-0000-0000-0000-00000000000c")

	rules := []CategorizationRule{
		{ID: c, Priority: 1},
		{ID: b, Priority: 0},
		{ID: a, Priority: 1},
	}
	SortRules(rules)
	assert.Equal(t, []uuid.UUID{b, a, c}, []uuid.UUID{rules[0].ID, rules[1].ID, rules[2].ID})
}

func TestRulePatternHash(t *testing.T) {
	assert.Equal(t,
		RulePatternHash("Amazon", "Prime  Video", false),
		RulePatternHash(" amazon ", "prime video", false),
	)
	assert.NotEqual(t,
		RulePatternHash("", "prime", false),
		RulePatternHash("", "prime", true),
	)
	assert.NotEqual(t,
		RulePatternHash("", `^A`, true),
		RulePatternHash("", `^a`, true),
	)
	assert.Len(t, RulePatternHash("", "", false), 64)
}

func BenchmarkEngine_CategorizeBatch(b *testing.B) {
	rules := make([]CategorizationRule, 0, 500)
	for i := 0; i < 500; i++ {
		rules = append(rules, CategorizationRule{
			ID:                 uuid.New(),
			Priority:           i,
			DescriptionPattern: uuid.NewString()[:8],
			CategoryID:         uuid.New(),
			IsActive:           true,
		})
	}
	engine := NewEngine(rules)

	txs := make([]normalizer.ParsedTransaction, 1000)
	for i := range txs {
		txs[i] = txn("Shop", "card payment at some shop "+uuid.NewString())
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.CategorizeBatch(txs)
	}
}
