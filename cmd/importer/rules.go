package main

import (
	"errors"
	"fmt"
	"regexp"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-importer/internal/domain/categorization"
)

func newRulesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
	}
	cmd.AddCommand(newRulesListCommand(a), newRulesAddCommand(a))
	return cmd
}

func newRulesListCommand(a *app) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}

			deps, err := InitDependencies(cmd.Context(), a.cfg, a.logger, dependencyOptions{})
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			rules, err := deps.CategorizationRepo.ListActiveRules(cmd.Context(), user)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRIORITY\tID\tMERCHANT\tPATTERN\tREGEX\tCATEGORY")
			for _, r := range rules {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%s\n",
					r.Priority, r.ID, dash(r.Merchant), dash(r.DescriptionPattern), r.IsRegex, r.CategoryID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "rule owner (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newRulesAddCommand(a *app) *cobra.Command {
	var (
		userID, categoryID string
		merchant, pattern  string
		isRegex, inactive  bool
		priority           int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a rule, or update the rule with the same condition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			category, err := uuid.Parse(categoryID)
			if err != nil {
				return fmt.Errorf("invalid --category: %w", err)
			}

			rule := &categorization.CategorizationRule{
				UserID:             user,
				Merchant:           merchant,
				DescriptionPattern: pattern,
				IsRegex:            isRegex,
				CategoryID:         category,
				Priority:           priority,
				IsActive:           !inactive,
			}
			if err := validateRule(rule); err != nil {
				return err
			}

			deps, err := InitDependencies(cmd.Context(), a.cfg, a.logger, dependencyOptions{})
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			if err := deps.CategorizationRepo.CreateRule(cmd.Context(), rule); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rule %s saved\n", rule.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "rule owner (required)")
	cmd.Flags().StringVar(&categoryID, "category", "", "category to assign (required)")
	cmd.Flags().StringVar(&merchant, "merchant", "", "counterparty to match, case-insensitive")
	cmd.Flags().StringVar(&pattern, "pattern", "", "text the description must contain")
	cmd.Flags().BoolVar(&isRegex, "regex", false, "treat --pattern as a regular expression")
	cmd.Flags().IntVar(&priority, "priority", 100, "lower values are evaluated first")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "store the rule disabled")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

// validateRule rejects rules the engine would ignore.
func validateRule(r *categorization.CategorizationRule) error {
	if r.Merchant == "" && r.DescriptionPattern == "" {
		return errors.New("a rule needs --merchant, --pattern or both")
	}
	if r.IsRegex && r.DescriptionPattern == "" {
		return errors.New("--regex requires --pattern")
	}
	if r.IsRegex {
		if _, err := regexp.Compile(r.DescriptionPattern); err != nil {
			return fmt.Errorf("invalid --pattern: %w", err)
		}
	}
	return nil
}

func newCategoriesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
	}

	var userID, name string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			if name == "" {
				return errors.New("--name is required")
			}

			deps, err := InitDependencies(cmd.Context(), a.cfg, a.logger, dependencyOptions{})
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			id, err := deps.CategorizationRepo.CreateCategory(cmd.Context(), user, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	add.Flags().StringVar(&userID, "user", "", "category owner (required)")
	add.Flags().StringVar(&name, "name", "", "category name (required)")
	_ = add.MarkFlagRequired("user")

	cmd.AddCommand(add)
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
