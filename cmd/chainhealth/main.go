// Package main provides the chainhealth CLI entry point.
package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"github.com/chainhealth/chainhealth/internal/platform"
	"github.com/chainhealth/chainhealth/internal/store"
	"github.com/chainhealth/chainhealth/pkg/config"
	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "chainhealth",
		Short: "Bitcoin network health scorecard",
		Long: `Chainhealth collects network measurements from public data sources,
normalizes them against their own history, and rolls them up into a
0-100 health score hierarchy.`,
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "chainhealth.yaml", "path to the config file")

	rootCmd.AddCommand(
		newCollectCmd(&configPath),
		newComputeCmd(&configPath),
		newBackfillCmd(&configPath),
		newSeedDemoCmd(&configPath),
		newDefinitionsCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env bundles everything a CLI command needs against a live database.
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *sql.DB
	store   *store.Store
	catalog *scorecard.Catalog
}

func (e *env) Close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
}

// openEnv loads config, builds the logger, opens and migrates the
// database, and loads the definition catalog.
func openEnv(configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := platform.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := platform.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	catalog, err := scorecard.LoadCatalog(cfg.Scoring.DefinitionsPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load definitions: %w", err)
	}

	return &env{
		cfg:     cfg,
		log:     log,
		db:      db,
		store:   store.New(db),
		catalog: catalog,
	}, nil
}

// newEngine wires a scoring engine over the env's stores.
func (e *env) newEngine() *scorecard.Engine {
	normalizer := scorecard.NewNormalizer(e.store.Measurements, e.store.Snapshots, e.log).
		WithWindows(e.cfg.Scoring.WindowDays, e.cfg.Scoring.FallbackDays)
	return scorecard.NewEngine(e.catalog, normalizer, e.store.Measurements, e.store.Scores, e.log)
}
