package categorization

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
)

// BatchResult holds the outcome of categorizing one import batch.
type BatchResult struct {
	// Assignments is parallel to the input; nil entries stay uncategorized.
	Assignments []*Result
	Categorized int
	Warnings    []string
}

// Service loads a user's rules and applies them to a batch of transactions.
type Service struct {
	rules      RuleStore
	categories CategoryStore // optional
	logger     *slog.Logger
}

// NewService creates a categorization service. categories may be nil, which
// skips the category integrity check.
func NewService(rules RuleStore, categories CategoryStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{rules: rules, categories: categories, logger: logger}
}

// LoadEngine builds an engine from the user's active rules.
func (s *Service) LoadEngine(ctx context.Context, userID uuid.UUID) (*Engine, error) {
	rules, err := s.rules.ListActiveRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	engine := NewEngine(rules)
	for _, w := range engine.Warnings() {
		s.logger.Warn("categorization rule ignored", "user_id", userID, "reason", w)
	}
	return engine, nil
}

// CategorizeBatch runs the user's rules over txs. Categories that no longer
// exist are dropped from the assignments with a warning; the transactions
// stay uncategorized.
func (s *Service) CategorizeBatch(ctx context.Context, userID uuid.UUID, txs []normalizer.ParsedTransaction) (*BatchResult, error) {
	engine, err := s.LoadEngine(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		Assignments: engine.CategorizeBatch(txs),
		Warnings:    engine.Warnings(),
	}
	if s.categories != nil {
		result.Warnings = append(result.Warnings, s.dropMissingCategories(ctx, result.Assignments)...)
	}

	for _, a := range result.Assignments {
		if a != nil {
			result.Categorized++
		}
	}
	return result, nil
}

func (s *Service) dropMissingCategories(ctx context.Context, assignments []*Result) []string {
	counts := make(map[uuid.UUID]int)
	for _, a := range assignments {
		if a != nil {
			counts[a.CategoryID]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	exists, err := s.categories.CategoriesExist(ctx, ids)
	if err != nil {
		s.logger.Warn("category check failed", slog.Any("error", err))
		return []string{"category integrity check failed; categories were assigned unchecked"}
	}

	var warnings []string
	for _, id := range ids {
		if exists[id] {
			continue
		}
		for i, a := range assignments {
			if a != nil && a.CategoryID == id {
				assignments[i] = nil
			}
		}
		warnings = append(warnings, fmt.Sprintf("category %s no longer exists; %d transactions left uncategorized", id, counts[id]))
	}
	return warnings
}
