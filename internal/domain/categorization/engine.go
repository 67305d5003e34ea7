package categorization

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/fingerprint"
	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
)

// Result identifies the rule that categorized a transaction.
type Result struct {
	RuleID     uuid.UUID
	CategoryID uuid.UUID
}

type compiledRule struct {
	rule     CategorizationRule
	merchant string         // normalized, empty when the rule has no merchant condition
	pattern  string         // normalized substring, empty for regex or no pattern
	re       *regexp.Regexp // set for regex patterns
}

// Engine evaluates an ordered rule set. The first rule whose conditions all
// hold wins. An Engine is immutable once built and safe for concurrent use.
//
// Substring patterns share one Aho-Corasick automaton; a description none of
// them occurs in skips the substring checks entirely.
type Engine struct {
	rules    []compiledRule
	matcher  *ahocorasick.Matcher
	warnings []string
}

// NewEngine builds an engine from rules in any order. Inactive rules and
// rules without conditions are ignored. Rules with an invalid regular
// expression are ignored and reported by Warnings.
func NewEngine(rules []CategorizationRule) *Engine {
	sorted := append([]CategorizationRule(nil), rules...)
	SortRules(sorted)

	e := &Engine{rules: make([]compiledRule, 0, len(sorted))}
	var patterns []string
	seen := make(map[string]struct{})

	for _, r := range sorted {
		if !r.IsActive {
			continue
		}
		c := compiledRule{rule: r, merchant: normalizeMerchant(r.Merchant)}

		if raw := strings.TrimSpace(r.DescriptionPattern); raw != "" {
			if r.IsRegex {
				re, err := regexp.Compile("(?i)" + raw)
				if err != nil {
					e.warnings = append(e.warnings, fmt.Sprintf("rule %s ignored: invalid pattern %q: %v", r.ID, raw, err))
					continue
				}
				c.re = re
			} else {
				c.pattern = fingerprint.NormalizeDescription(raw)
				if _, ok := seen[c.pattern]; !ok {
					seen[c.pattern] = struct{}{}
					patterns = append(patterns, c.pattern)
				}
			}
		}

		if c.merchant == "" && c.pattern == "" && c.re == nil {
			continue
		}
		e.rules = append(e.rules, c)
	}

	if len(patterns) > 0 {
		e.matcher = ahocorasick.NewStringMatcher(patterns)
	}
	return e
}

// Match returns the first rule matching t.
func (e *Engine) Match(t normalizer.ParsedTransaction) (*Result, bool) {
	if len(e.rules) == 0 {
		return nil, false
	}

	desc := fingerprint.NormalizeDescription(t.Description)
	merchant := normalizeMerchant(t.Counterparty)
	anyPattern := e.matcher != nil && len(e.matcher.MatchThreadSafe([]byte(desc))) > 0

	for i := range e.rules {
		c := &e.rules[i]
		if c.matches(merchant, desc, anyPattern) {
			return &Result{RuleID: c.rule.ID, CategoryID: c.rule.CategoryID}, true
		}
	}
	return nil, false
}

// Categorize returns the category of the first matching rule.
func (e *Engine) Categorize(t normalizer.ParsedTransaction) (uuid.UUID, bool) {
	res, ok := e.Match(t)
	if !ok {
		return uuid.Nil, false
	}
	return res.CategoryID, true
}

// CategorizeBatch matches every transaction. Unmatched entries are nil.
func (e *Engine) CategorizeBatch(txs []normalizer.ParsedTransaction) []*Result {
	results := make([]*Result, len(txs))
	for i := range txs {
		if res, ok := e.Match(txs[i]); ok {
			results[i] = res
		}
	}
	return results
}

// Warnings lists problems found while building the engine.
func (e *Engine) Warnings() []string {
	return append([]string(nil), e.warnings...)
}

// RuleCount returns the number of rules that can match.
func (e *Engine) RuleCount() int {
	return len(e.rules)
}

// matches requires every condition present on the rule to hold.
func (c *compiledRule) matches(merchant, desc string, anyPattern bool) bool {
	if c.merchant != "" && c.merchant != merchant {
		return false
	}
	switch {
	case c.re != nil:
		return c.re.MatchString(desc)
	case c.pattern != "":
		// The automaton only says whether some pattern occurs; the check
		// for this rule's own pattern is exact.
		return anyPattern && strings.Contains(desc, c.pattern)
	}
	return true
}

func normalizeMerchant(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
