package main

import (
	"github.com/spf13/cobra"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
)

func newChainsCommand(c *console) *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List the supported chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, info := range domain.SupportedChains() {
				network := "mainnet"
				if info.Testnet {
					network = "testnet"
				}
				c.Printf("%-18s %-24s %-8s %s\n", info.Chain, info.Name, network, info.ExplorerURL)
			}
			return nil
		},
	}
}
