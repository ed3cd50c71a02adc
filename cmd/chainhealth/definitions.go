package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chainhealth/chainhealth/pkg/config"
	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

func newDefinitionsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "Inspect the definition catalog",
	}
	cmd.AddCommand(newDefinitionsValidateCmd(configPath))
	return cmd
}

func newDefinitionsValidateCmd(configPath *string) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a definitions file without touching the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				path = cfg.Scoring.DefinitionsPath
			}

			catalog, err := scorecard.LoadCatalog(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", path)
			fmt.Fprintf(out, "  pillars: %d\n", len(catalog.Pillars()))
			fmt.Fprintf(out, "  metrics: %d\n", len(catalog.Metrics()))
			for _, p := range catalog.Pillars() {
				fmt.Fprintf(out, "  %s (weight %.2f): %d metrics\n",
					p.PillarID, p.Weight, len(catalog.MetricsForPillar(p.PillarID)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "definitions file (defaults to the configured path)")
	return cmd
}
