package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"election-ledger/config"
)

// cli holds the configuration shared by every subcommand. Flags override the
// ELECTIONS_* environment.
type cli struct {
	cfg    config.Config
	logger *slog.Logger

	storage   string
	dataDir   string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:          "electiond",
		Short:        "Election ledger node",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.storage, "storage", "", "storage backend: memory, bolt, sqlite or postgres")
	flags.StringVar(&c.dataDir, "data-dir", "", "directory for the database and node key")
	flags.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&c.logFormat, "log-format", "", "text or json")

	rootCmd.AddCommand(
		newServeCmd(c),
		newChainCmd(c),
		newKeygenCmd(),
	)
	return rootCmd
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("storage") {
		cfg.Storage = c.storage
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = c.dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = c.logFormat
	}

	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}
