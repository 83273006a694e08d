package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-talk/internal/config"
	"github.com/teslashibe/go-talk/internal/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "talk",
		Short:        "Voice conversations between Discord and the OpenAI Realtime API",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./talk.yaml or $HOME/.config/talk/talk.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newDeployCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// load reads the configuration and initializes logging.
func (o *rootOptions) load(required ...string) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	log.Init(cfg.LogLevel)

	if err := cfg.Require(required...); err != nil {
		return nil, err
	}
	return cfg, nil
}
