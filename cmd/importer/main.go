// Command importer loads bank statement exports into the transaction store.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-importer/pkg/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is filled in before any subcommand runs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "importer",
		Short: "Import bank statement exports",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.Logging, cmd.ErrOrStderr())
			slog.SetDefault(a.logger)
			return nil
		},
	}

	root.AddCommand(
		newImportCommand(a),
		newWatchCommand(a),
		newMigrateCommand(a),
		newRulesCommand(a),
		newCategoriesCommand(a),
		newLayoutsCommand(a),
	)
	return root
}
