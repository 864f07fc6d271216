package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"election-ledger/signing"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a fresh node key for ELECTIONS_NODE_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := signing.Generate()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s.Credentials())
		},
	}
}
