package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/lmoreira/gateway-migration-workbench/internal/api"
	"github.com/lmoreira/gateway-migration-workbench/internal/config"
	"github.com/lmoreira/gateway-migration-workbench/internal/gateway"
	"github.com/lmoreira/gateway-migration-workbench/internal/logging"
	"github.com/lmoreira/gateway-migration-workbench/internal/metrics"
	"github.com/lmoreira/gateway-migration-workbench/internal/migration"
	"github.com/lmoreira/gateway-migration-workbench/internal/models"
	"github.com/lmoreira/gateway-migration-workbench/internal/repository"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			fmt.Printf("gwmigrate %s (commit: %s, built: %s)\n", version, commit, date)
			os.Exit(0)
		}
	}

	logger := logging.New()

	cfg, err := config.Parse()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	gw := gateway.NewHTTPClient(logger,
		cfg.Gateway.BaseURL,
		cfg.Gateway.Organization,
		cfg.Gateway.Environment,
		cfg.Gateway.Token,
		cfg.Gateway.RatePerSec)
	repo := repository.New(cfg.ExportDir, cfg.SourceEnv)
	migrator := migration.NewMigrator(logger, gw, repo,
		cfg.Gateway.Organization, cfg.Gateway.Environment, cfg.Deploy)
	retry := migration.Policy{
		MaxRetries:  cfg.MaxRetries,
		Delay:       cfg.RetryDelay,
		Exponential: cfg.ExponentialBackoff(),
	}
	m := metrics.New()

	server := &api.Server{
		Logger:     logger,
		Jobs:       models.NewJobStore(),
		Reports:    api.NewReportStore(),
		Repo:       repo,
		Metrics:    m,
		RunTimeout: cfg.RunTimeout,
		NewRun: func(sink func(string)) api.Runner {
			return migration.NewOrchestrator(logger, repo, migrator, retry,
				migration.WithWorkers(cfg.Workers),
				migration.WithMetrics(m),
				migration.WithLogSink(sink))
		},
	}

	logger.Info().
		Str("version", version).
		Str("listen", cfg.Listen).
		Str("export_dir", cfg.ExportDir).
		Str("gateway", cfg.Gateway.BaseURL).
		Str("organization", cfg.Gateway.Organization).
		Str("environment", cfg.Gateway.Environment).
		Msg("gateway migration workbench starting")

	if err := http.ListenAndServe(cfg.Listen, api.NewRouter(server)); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
