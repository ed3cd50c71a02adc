package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

func newComputeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Run one scoring pass and print the results",
		Long: `Refreshes percentile snapshots, scores every metric against its own
history, aggregates pillar and overall scores, and persists the pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			pass, err := e.newEngine().ComputeAll(cmd.Context())
			if err != nil {
				return err
			}
			printPass(cmd, e, pass)
			return nil
		},
	}
	return cmd
}

func printPass(cmd *cobra.Command, e *env, pass *scorecard.PassResult) {
	out := cmd.OutOrStdout()

	if pass.Overall.Present {
		fmt.Fprintf(out, "Overall: %.1f\n", pass.Overall.Value)
	} else {
		fmt.Fprintf(out, "Overall: n/a (%v)\n", pass.Overall.Reason)
	}

	fmt.Fprintln(out, "\nPillars:")
	for _, def := range e.catalog.Pillars() {
		printScore(out, "  ", def.PillarID, def.Name, pass.Pillars[def.PillarID])
	}

	fmt.Fprintln(out, "\nMetrics:")
	ids := make([]string, 0, len(pass.Metrics))
	for id := range pass.Metrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		name := id
		if def, err := e.catalog.Metric(id); err == nil {
			name = def.Name
		}
		printScore(out, "  ", id, name, pass.Metrics[id])
	}
}

func printScore(out io.Writer, indent, id, name string, s scorecard.Score) {
	if s.Present {
		fmt.Fprintf(out, "%s%-28s %6.1f  (%s)\n", indent, id, s.Value, name)
	} else {
		fmt.Fprintf(out, "%s%-28s    n/a  (%v)\n", indent, id, s.Reason)
	}
}
