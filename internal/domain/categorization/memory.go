package categorization

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process RuleStore and CategoryStore.
type MemoryStore struct {
	mu         sync.RWMutex
	rules      map[uuid.UUID][]CategorizationRule
	categories map[uuid.UUID]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules:      make(map[uuid.UUID][]CategorizationRule),
		categories: make(map[uuid.UUID]struct{}),
	}
}

// AddCategory registers a category id.
func (s *MemoryStore) AddCategory(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[id] = struct{}{}
}

// AddRule stores a rule, assigning an ID and PatternHash when missing.
func (s *MemoryStore) AddRule(rule CategorizationRule) CategorizationRule {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.PatternHash == "" {
		rule.PatternHash = RulePatternHash(rule.Merchant, rule.DescriptionPattern, rule.IsRegex)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.UserID] = append(s.rules[rule.UserID], rule)
	return rule
}

func (s *MemoryStore) ListActiveRules(_ context.Context, userID uuid.UUID) ([]CategorizationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rules []CategorizationRule
	for _, r := range s.rules[userID] {
		if r.IsActive {
			rules = append(rules, r)
		}
	}
	SortRules(rules)
	return rules, nil
}

func (s *MemoryStore) CategoriesExist(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exists := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		_, ok := s.categories[id]
		exists[id] = ok
	}
	return exists, nil
}
