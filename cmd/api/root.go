package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/folio-assist/backend/internal/config"
	"github.com/zhouzirui/folio-assist/backend/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "folio-assist",
		Short:         "Chat assist backend for the portfolio site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("FOLIO_CONFIG"), "optional TOML config file (env FOLIO_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "overrides LOG_LEVEL")

	cmd.AddCommand(newServeCmd(opts), newCompleteCmd(opts))
	return cmd
}

// load reads .env, the config file and the process env, then configures logging.
func (o *rootOptions) load() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("[config] failed to load .env, using process environment only")
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	return cfg, nil
}
