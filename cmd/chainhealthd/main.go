// Command chainhealthd is the chainhealth service. It polls the data
// sources on a schedule, recomputes the score hierarchy, and serves the
// REST API plus a Prometheus metrics endpoint.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"github.com/chainhealth/chainhealth/internal/api"
	"github.com/chainhealth/chainhealth/internal/archive"
	"github.com/chainhealth/chainhealth/internal/collector"
	"github.com/chainhealth/chainhealth/internal/derive"
	"github.com/chainhealth/chainhealth/internal/exporter"
	"github.com/chainhealth/chainhealth/internal/platform"
	"github.com/chainhealth/chainhealth/internal/store"
	"github.com/chainhealth/chainhealth/pkg/config"
	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

func main() {
	configPath := flag.String("config", "chainhealth.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	log, err := platform.NewLogger(cfg.Logging)
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("chainhealthd failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := platform.AutoMigrate(db); err != nil {
		return err
	}

	catalog, err := scorecard.LoadCatalog(cfg.Scoring.DefinitionsPath)
	if err != nil {
		return err
	}

	st := store.New(db)

	arch, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	timeout := time.Duration(cfg.Collectors.TimeoutSeconds) * time.Second
	rps := cfg.Collectors.RequestsPerSec
	collectors := []collector.Collector{
		collector.NewMempool(
			collector.NewClient(cfg.Collectors.MempoolBaseURL, rps, timeout, log),
			st.Raw, st.Measurements, arch, log),
		collector.NewBinance(
			collector.NewClient(cfg.Collectors.BinanceBaseURL, rps, timeout, log),
			st.Measurements, arch, log),
		collector.NewBitnodes(
			collector.NewClient(cfg.Collectors.BitnodesBaseURL, rps, timeout, log),
			st.Measurements, arch, log),
	}
	runner := collector.NewRunner(st.Status, log)
	calculator := derive.NewCalculator(st.Raw, st.Measurements, log)

	normalizer := scorecard.NewNormalizer(st.Measurements, st.Snapshots, log).
		WithWindows(cfg.Scoring.WindowDays, cfg.Scoring.FallbackDays)
	engine := scorecard.NewEngine(catalog, normalizer, st.Measurements, st.Scores, log)

	exp := exporter.New(catalog, st.Scores, st.Measurements, st.Status, log)
	if err := exp.Refresh(ctx); err != nil {
		log.Warn("initial gauge refresh failed", zap.Error(err))
	}

	handler := api.NewHandler(db, catalog, st.Scores, st.Measurements, st.Status)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", exp.Handler())

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: api.CORS(api.APIKeyAuth(cfg.Server.APIKey)(mux)),
	}

	go scheduler(ctx, cfg, log, runner, collectors, calculator, engine, exp)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting chainhealthd", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// scheduler runs the collect-derive-score cycle on the configured
// interval. A cycle still running when the ticker fires is skipped
// rather than overlapped.
func scheduler(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
	runner *collector.Runner,
	collectors []collector.Collector,
	calculator *derive.Calculator,
	engine *scorecard.Engine,
	exp *exporter.Exporter,
) {
	interval := time.Duration(cfg.Scoring.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	var running atomic.Bool
	cycle := func() {
		if !running.CompareAndSwap(false, true) {
			log.Warn("previous cycle still running, skipping")
			return
		}
		defer running.Store(false)

		if err := runner.RunAll(ctx, collectors...); err != nil {
			log.Warn("collection finished with errors", zap.Error(err))
		}
		if err := calculator.CalculateAll(ctx); err != nil {
			log.Error("derived metric calculation failed", zap.Error(err))
			return
		}
		pass, err := engine.ComputeAll(ctx)
		if err != nil {
			log.Error("scoring pass failed", zap.Error(err))
			return
		}
		if pass.Overall.Present {
			log.Info("scoring pass complete",
				zap.String("pass_id", pass.PassID),
				zap.Float64("overall", pass.Overall.Value))
		} else {
			log.Info("scoring pass complete, overall absent",
				zap.String("pass_id", pass.PassID),
				zap.NamedError("reason", pass.Overall.Reason))
		}
		if err := exp.Refresh(ctx); err != nil {
			log.Warn("gauge refresh failed", zap.Error(err))
		}
	}

	cycle()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go cycle()
		}
	}
}
