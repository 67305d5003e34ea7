package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCommands = map[string]bool{
	"up":     true,
	"down":   true,
	"status": true,
	"redo":   true,
	"reset":  true,
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|redo|reset]",
		Short:     "Manage the database schema",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "redo", "reset"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			if !migrateCommands[command] {
				return fmt.Errorf("unknown migrate command %q", command)
			}

			deps, err := InitDependencies(cmd.Context(), a.cfg, a.logger, dependencyOptions{
				SkipMigrations: true,
				DatabaseOnly:   true,
			})
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			return deps.DB.Migrate(cmd.Context(), command)
		},
	}
}
