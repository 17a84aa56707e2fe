package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalog"
	"github.com/kailas-cloud/catalog/internal/config"
	logpkg "github.com/kailas-cloud/catalog/internal/logger"
	"github.com/kailas-cloud/catalog/internal/metrics"
)

// app holds what every command shares once the root pre-run has finished.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
	client *catalog.Client

	flagEnv       string
	flagRegion    string
	flagLocale    string
	flagCacheRoot string
	flagLogLevel  string
	flagJSON      bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "catalog",
		Short:        "Cache-first client for the furniture product catalog",
		SilenceUsage: true, // don't print usage on operational errors
		Long: `catalog searches the remote product catalog and keeps product documents,
thumbnails and binary 3D models in a local cache. Every artifact is fetched at
most once; later calls are served from <cache-root>/<id>/.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["offline"] == "true" {
				return nil
			}
			return a.setup(cmd.Annotations["metrics"] == "true")
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagEnv, "env", config.GetEnv(), "Configuration environment (config/<env>.yaml)")
	pf.StringVar(&a.flagRegion, "region", "", "Two-letter region code (overrides config)")
	pf.StringVar(&a.flagLocale, "locale", "", "Two-letter locale code (overrides config)")
	pf.StringVar(&a.flagCacheRoot, "cache-root", "", "Cache directory (overrides config)")
	pf.StringVar(&a.flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&a.flagJSON, "json", false, "Print results as JSON")

	root.AddCommand(
		newSearchCmd(a),
		newMetadataCmd(a),
		newThumbnailCmd(a),
		newModelCmd(a),
		newAvailabilityCmd(a),
		newPrefetchCmd(a),
		newFormatCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration, applies flag overrides and builds the client.
// With withMetrics the client's collectors go to the default registry.
func (a *app) setup(withMetrics bool) error {
	a.env = a.flagEnv
	cfg, err := config.Load(a.env)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}
	if a.flagRegion != "" {
		cfg.Catalog.Region = a.flagRegion
	}
	if a.flagLocale != "" {
		cfg.Catalog.Locale = a.flagLocale
	}
	if a.flagCacheRoot != "" {
		cfg.Cache.Root = a.flagCacheRoot
	}
	if a.flagLogLevel != "" {
		cfg.Logging.Level = a.flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg

	a.logger, err = logpkg.NewLogger(a.env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("cannot create logger: %w", err)
	}

	opts := []catalog.Option{
		catalog.WithConfig(cfg),
		catalog.WithLogger(a.logger),
	}
	if withMetrics {
		if err := metrics.RegisterHTTP(prometheus.DefaultRegisterer); err != nil {
			return err
		}
		opts = append(opts, catalog.WithPrometheus(prometheus.DefaultRegisterer))
	}

	a.client, err = catalog.New(opts...)
	return err
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
