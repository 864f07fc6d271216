package main

import (
	"github.com/spf13/cobra"

	"election-ledger/api"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		addr  string
		owner string
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if cmd.Flags().Changed("addr") {
				cfg.HTTPAddr = addr
			}
			if cmd.Flags().Changed("owner") {
				cfg.Owner = owner
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			n, err := openNode(cmd.Context(), cfg, c)
			if err != nil {
				return err
			}
			defer n.Close()
			n.queue.Start()

			server := api.NewServer(api.Config{
				Ledger:  n.ledger,
				Queue:   n.queue,
				Metrics: n.metrics,
				Logger:  c.logger,
			})
			return api.Serve(cmd.Context(), cfg.HTTPAddr, server.Handler(), cfg.ShutdownTimeout, c.logger)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides ELECTIONS_HTTP_ADDR")
	serveCmd.Flags().StringVar(&owner, "owner", "", "owner principal, overrides ELECTIONS_OWNER")
	return serveCmd
}
