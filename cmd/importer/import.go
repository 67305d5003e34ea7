package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-importer/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/echo-importer/internal/domain/import/service"
)

func newImportCommand(a *app) *cobra.Command {
	var (
		userID, accountID string
		currency          string
		timezone          string
		headerLine        int
		noCategorize      bool
		noDedup           bool
		keepDuplicates    bool
		dryRun            bool
		rejectsPath       string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV or XLSX statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseOptionalUUID(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			account, err := uuid.Parse(accountID)
			if err != nil {
				return fmt.Errorf("invalid --account: %w", err)
			}
			loc := time.UTC
			if timezone != "" {
				if loc, err = time.LoadLocation(timezone); err != nil {
					return fmt.Errorf("invalid --timezone: %w", err)
				}
			}
			if currency == "" {
				currency = a.cfg.Import.DefaultCurrency
			}

			ctx := cmd.Context()
			deps, err := InitDependencies(ctx, a.cfg, a.logger, importDependencyOptions(dryRun))
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			importer := newFileImporter(deps.ImportService, importDefaults{
				UserID:           user,
				AccountID:        account,
				Currency:         currency,
				AutoCategorize:   !noCategorize,
				DetectDuplicates: !noDedup,
				SkipDuplicates:   !keepDuplicates,
				HeaderLine:       headerLine,
				Location:         loc,
			}, a.logger)

			outcome, importErr := importer.Import(ctx, args[0])
			if outcome != nil {
				printSummary(cmd.OutOrStdout(), outcome, dryRun)
				if rejectsPath != "" {
					if err := writeRejects(rejectsPath, outcome.Result.RowErrors); err != nil {
						return err
					}
				}
			}
			return importErr
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner of the rules applied during categorization")
	cmd.Flags().StringVar(&accountID, "account", "", "account the transactions belong to (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&currency, "currency", "", "ISO currency of the statement (default from IMPORT_DEFAULT_CURRENCY)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA zone for dates without one")
	cmd.Flags().IntVar(&headerLine, "header-line", 0, "1-based line of the header row (0 detects it)")
	cmd.Flags().BoolVar(&noCategorize, "no-categorize", false, "skip rule-based categorization")
	cmd.Flags().BoolVar(&noDedup, "no-dedup", false, "skip duplicate detection")
	cmd.Flags().BoolVar(&keepDuplicates, "keep-duplicates", false, "import duplicates flagged instead of skipping them")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be imported without writing")
	cmd.Flags().StringVar(&rejectsPath, "rejects", "", "write rows that could not be parsed to this CSV file")

	return cmd
}

func parseOptionalUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

// importDependencyOptions leaves both the data and the schema untouched on a
// dry run.
func importDependencyOptions(dryRun bool) dependencyOptions {
	return dependencyOptions{DryRun: dryRun, SkipMigrations: dryRun}
}

func printSummary(w io.Writer, outcome *importservice.Outcome, dryRun bool) {
	res := outcome.Result
	prefix := ""
	if dryRun {
		prefix = "[dry run] "
	}

	fmt.Fprintf(w, "%simport %s: %s\n", prefix, res.JobID, outcome.State)
	if res.Layout != "" {
		fmt.Fprintf(w, "  layout:              %s\n", res.Layout)
	}
	fmt.Fprintf(w, "  rows:                %d\n", res.TotalRows)
	fmt.Fprintf(w, "  imported:            %d\n", res.Imported)
	fmt.Fprintf(w, "  categorized:         %d\n", res.Categorized)
	fmt.Fprintf(w, "  skipped duplicates:  %d\n", res.SkippedDuplicates)
	fmt.Fprintf(w, "  skipped invalid:     %d\n", res.SkippedInvalid)
	if res.FlaggedDuplicates > 0 {
		fmt.Fprintf(w, "  flagged duplicates:  %d\n", res.FlaggedDuplicates)
	}
	if res.Imported > 0 {
		fmt.Fprintf(w, "  inflow:              %s\n", res.Inflow.Display())
		fmt.Fprintf(w, "  outflow:             %s\n", res.Outflow.Display())
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	if outcome.Err != nil {
		fmt.Fprintf(w, "  error: %v\n", outcome.Err)
	}
}

func writeRejects(path string, rows []importservice.RowError) error {
	rejected := make([]normalizer.RejectedRow, len(rows))
	for i, r := range rows {
		rejected[i] = normalizer.RejectedRow{Line: r.Line, Reason: r.Reason, Raw: r.Raw}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create rejects report: %w", err)
	}
	if err := parser.WriteRejectedReport(f, rejected); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
