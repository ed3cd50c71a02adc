package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

func newSeedDemoCmd(configPath *string) *cobra.Command {
	var (
		days    int
		compute bool
	)

	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Seed synthetic history for every cataloged metric",
		Long: `Generates a deterministic synthetic time series for each metric in the
definition catalog, so the score hierarchy can be demonstrated without
waiting for real collections to accumulate. Values are a bounded random
walk seeded per metric id; re-running produces the same data.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := seedDemo(cmd.Context(), e, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d measurements across %d metrics\n",
				n, len(e.catalog.Metrics()))

			if compute {
				pass, err := e.newEngine().ComputeAll(cmd.Context())
				if err != nil {
					return err
				}
				printPass(cmd, e, pass)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 400, "days of synthetic history per metric")
	cmd.Flags().BoolVar(&compute, "compute", false, "run a scoring pass after seeding")
	return cmd
}

func seedDemo(ctx context.Context, e *env, days int) (int, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	written := 0

	for _, def := range e.catalog.Metrics() {
		rng := rand.New(rand.NewSource(int64(metricSeed(def.MetricID))))
		value := demoBase(def)
		step := value * 0.02

		for d := days; d > 0; d-- {
			// Bounded random walk with a mild drift toward the base.
			value += rng.NormFloat64()*step + (demoBase(def)-value)*0.05
			if value < 0 {
				value = math.Abs(value)
			}

			m := scorecard.Measurement{
				MetricID:  def.MetricID,
				Timestamp: now.AddDate(0, 0, -d).Unix(),
				Value:     value,
				Unit:      def.Unit,
			}
			if err := e.store.Measurements.Upsert(ctx, m); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

// demoBase picks a plausible center value for a metric's synthetic
// series. Target-band metrics walk around the band center so the demo
// scores look healthy; everything else gets an arbitrary positive base.
func demoBase(def scorecard.MetricDefinition) float64 {
	if def.Direction == scorecard.TargetBand && def.TargetMin != nil && def.TargetMax != nil {
		return (*def.TargetMin + *def.TargetMax) / 2
	}
	return 50 + float64(metricSeed(def.MetricID)%1000)
}

func metricSeed(metricID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(metricID))
	return h.Sum32()
}
