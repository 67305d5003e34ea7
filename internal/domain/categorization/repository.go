package categorization

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool (and pgx.Tx) the repository uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// Repository handles database operations for rules and categories.
type Repository struct {
	db DBTX
}

// NewRepository creates a new categorization repository
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// ListActiveRules fetches the user's active rules in evaluation order.
func (r *Repository) ListActiveRules(ctx context.Context, userID uuid.UUID) ([]CategorizationRule, error) {
	query := `
		SELECT id, user_id, pattern_hash, COALESCE(merchant, ''), COALESCE(description_pattern, ''),
		       is_regex, category_id, priority, is_active, created_at, updated_at
		FROM categorization_rules
		WHERE user_id = $1 AND is_active
		ORDER BY priority ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []CategorizationRule
	for rows.Next() {
		var rule CategorizationRule
		if err := rows.Scan(
			&rule.ID,
			&rule.UserID,
			&rule.PatternHash,
			&rule.Merchant,
			&rule.DescriptionPattern,
			&rule.IsRegex,
			&rule.CategoryID,
			&rule.Priority,
			&rule.IsActive,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	SortRules(rules)
	return rules, nil
}

// CreateRule inserts a rule, or updates the existing rule with the same
// matching condition. PatternHash is derived when empty.
func (r *Repository) CreateRule(ctx context.Context, rule *CategorizationRule) error {
	if rule.PatternHash == "" {
		rule.PatternHash = RulePatternHash(rule.Merchant, rule.DescriptionPattern, rule.IsRegex)
	}

	query := `
		INSERT INTO categorization_rules
			(user_id, pattern_hash, merchant, description_pattern, is_regex, category_id, priority, is_active)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)
		ON CONFLICT (user_id, pattern_hash) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			priority    = EXCLUDED.priority,
			is_active   = EXCLUDED.is_active,
			updated_at  = now()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		rule.UserID,
		rule.PatternHash,
		rule.Merchant,
		rule.DescriptionPattern,
		rule.IsRegex,
		rule.CategoryID,
		rule.Priority,
		rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// CreateCategory inserts a category owned by userID.
func (r *Repository) CreateCategory(ctx context.Context, userID uuid.UUID, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`INSERT INTO categories (user_id, name) VALUES ($1, $2) RETURNING id`,
		userID, name,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create category: %w", err)
	}
	return id, nil
}

// CategoriesExist reports, for every id, whether the category exists.
func (r *Repository) CategoriesExist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	exists := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return exists, nil
	}
	for _, id := range ids {
		exists[id] = false
	}

	rows, err := r.db.Query(ctx, `SELECT id FROM categories WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		exists[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to check categories: %w", err)
	}
	return exists, nil
}
