// Package categorization assigns categories to imported transactions using
// user-authored rules evaluated in a fixed order.
package categorization

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CategorizationRule assigns CategoryID to transactions whose counterparty
// equals Merchant and/or whose description contains DescriptionPattern.
// Lower Priority values are evaluated first.
type CategorizationRule struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	PatternHash        string
	Merchant           string
	DescriptionPattern string
	IsRegex            bool
	CategoryID         uuid.UUID
	Priority           int
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RuleStore lists the rules the engine is built from.
type RuleStore interface {
	// ListActiveRules returns the user's active rules sorted by (priority, id).
	ListActiveRules(ctx context.Context, userID uuid.UUID) ([]CategorizationRule, error)
}

// CategoryStore checks that categories referenced by rules still exist.
type CategoryStore interface {
	CategoriesExist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

// RulePatternHash derives a rule's PatternHash from its matching condition.
// Two rules with the same condition collide regardless of case or spacing.
func RulePatternHash(merchant, descriptionPattern string, isRegex bool) string {
	var b strings.Builder
	b.WriteString("merchant=")
	b.WriteString(strings.ToLower(strings.Join(strings.Fields(merchant), " ")))
	b.WriteString("\ndescription=")
	if isRegex {
		b.WriteString(descriptionPattern)
	} else {
		b.WriteString(strings.ToLower(strings.Join(strings.Fields(descriptionPattern), " ")))
	}
	b.WriteString("\nregex=")
	b.WriteString(strconv.FormatBool(isRegex))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// SortRules orders rules by (Priority asc, ID asc) in place.
func SortRules(rules []CategorizationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return ruleLess(rules[i], rules[j])
	})
}

func ruleLess(a, b CategorizationRule) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}
