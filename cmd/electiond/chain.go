package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"election-ledger/chain"
	"election-ledger/config"
	"election-ledger/storage"
)

var errChainInvalid = errors.New("journal verification failed")

func newChainCmd(c *cli) *cobra.Command {
	chainCmd := &cobra.Command{
		Use:   "chain",
		Short: "Inspect the ledger journal",
	}
	chainCmd.AddCommand(newChainVerifyCmd(c))
	return chainCmd
}

func newChainVerifyCmd(c *cli) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the journal of a stopped node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if cfg.Storage == config.StorageMemory {
				return errors.New("chain verify needs a persistent storage backend")
			}

			var signer common.Address
			if address != "" {
				if !common.IsHexAddress(address) {
					return fmt.Errorf("invalid signer address %q", address)
				}
				signer = common.HexToAddress(address)
			} else {
				s, err := existingSigner(cfg)
				if err != nil {
					return err
				}
				signer = s.Address()
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var report *chain.Report
			err = store.View(cmd.Context(), func(r storage.Reader) error {
				var err error
				report, err = chain.Verify(r, signer)
				return err
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Valid {
				return errChainInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "signer", "", "expected signer address; defaults to the node key")
	return cmd
}
