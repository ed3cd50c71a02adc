package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/chainhealth/chainhealth/internal/archive"
	"github.com/chainhealth/chainhealth/internal/collector"
	"github.com/chainhealth/chainhealth/internal/derive"
)

func newCollectCmd(configPath *string) *cobra.Command {
	var (
		withBitnodes bool
		skipDerive   bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run all collectors once and recompute derived metrics",
		Long: `Polls mempool.space, Binance, and optionally Bitnodes, writes raw
payloads and measurements, then recomputes the derived metrics.
Bitnodes is off by default because its public API allows very few
requests per day.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()
			return runCollect(cmd.Context(), e, withBitnodes, skipDerive)
		},
	}

	cmd.Flags().BoolVar(&withBitnodes, "bitnodes", false, "include the bitnodes collector")
	cmd.Flags().BoolVar(&skipDerive, "skip-derive", false, "skip derived metric recomputation")
	return cmd
}

func runCollect(ctx context.Context, e *env, withBitnodes, skipDerive bool) error {
	arch, err := archive.New(ctx, e.cfg.Archive)
	if err != nil {
		return err
	}

	timeout := time.Duration(e.cfg.Collectors.TimeoutSeconds) * time.Second
	rps := e.cfg.Collectors.RequestsPerSec

	collectors := []collector.Collector{
		collector.NewMempool(
			collector.NewClient(e.cfg.Collectors.MempoolBaseURL, rps, timeout, e.log),
			e.store.Raw, e.store.Measurements, arch, e.log),
		collector.NewBinance(
			collector.NewClient(e.cfg.Collectors.BinanceBaseURL, rps, timeout, e.log),
			e.store.Measurements, arch, e.log),
	}
	if withBitnodes {
		collectors = append(collectors, collector.NewBitnodes(
			collector.NewClient(e.cfg.Collectors.BitnodesBaseURL, rps, timeout, e.log),
			e.store.Measurements, arch, e.log))
	}

	runner := collector.NewRunner(e.store.Status, e.log)
	collectErr := runner.RunAll(ctx, collectors...)

	if !skipDerive {
		calc := derive.NewCalculator(e.store.Raw, e.store.Measurements, e.log)
		if err := calc.CalculateAll(ctx); err != nil {
			return err
		}
	}
	return collectErr
}
