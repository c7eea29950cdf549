package main

import (
	"github.com/spf13/cobra"

	"github.com/phobologic/codescope/internal/analyze"
	"github.com/phobologic/codescope/internal/cache"
	"github.com/phobologic/codescope/internal/server"
)

func newServeCmd() *cobra.Command {
	var configPath, addr, cacheDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis engine over HTTP",
		Long: `Accept zip uploads on POST /v1/analyze and return the report. Prometheus
metrics are exposed on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, ".")
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("cache-dir") {
				cfg.Cache.Dir = cacheDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cfg.Logging, cmd.ErrOrStderr())
			engine, err := analyze.New(cfg, analyze.WithLogger(logger))
			if err != nil {
				return err
			}

			var store *cache.Cache
			if cfg.Cache.Dir != "" {
				store, err = cache.Open(cfg.Cache.Dir, logger, cache.WithTTL(cfg.Cache.TTL))
			} else {
				store, err = cache.OpenInMemory(cache.WithTTL(cfg.Cache.TTL))
			}
			if err != nil {
				return err
			}
			defer store.Close()

			return server.New(engine, store, logger).Run(cmd.Context(), cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: ./"+configFileName+" if present)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "report cache directory (default: in memory)")
	return cmd
}
