package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/sniffer"
)

func newLayoutsCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "layouts",
		Short: "List the bank layouts the importer recognizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = a.cfg.Import.LayoutsFile
			}
			registry, err := newLayoutRegistry(file, a.logger)
			if err != nil {
				return err
			}
			return printLayouts(cmd.OutOrStdout(), registry)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "custom layouts YAML (defaults to the configured one)")
	return cmd
}

// newLayoutRegistry returns the built-in layouts plus those in path, if set.
func newLayoutRegistry(path string, logger *slog.Logger) (*sniffer.Registry, error) {
	registry := sniffer.NewRegistry()
	if path == "" {
		return registry, nil
	}
	n, err := registry.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load bank layouts: %w", err)
	}
	logger.Info("custom bank layouts loaded", "path", path, "count", n)
	return registry, nil
}

func printLayouts(w io.Writer, registry *sniffer.Registry) error {
	for _, name := range registry.Layouts() {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}
