package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chainhealth/chainhealth/internal/collector"
)

func newBackfillCmd(configPath *string) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Load historical daily prices so scoring has a distribution",
		Long: `Fetches daily BTC/USDT closes from Binance klines for the given number
of days. Percentile-rank scoring needs at least 10 historical points
per metric; run this once before the first compute on a fresh database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			timeout := time.Duration(e.cfg.Collectors.TimeoutSeconds) * time.Second
			client := collector.NewClient(e.cfg.Collectors.BinanceBaseURL, e.cfg.Collectors.RequestsPerSec, timeout, e.log)
			binance := collector.NewBinance(client, e.store.Measurements, nil, e.log)

			n, err := binance.Backfill(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backfilled %d daily price points\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 365, "number of days of history to load")
	return cmd
}
