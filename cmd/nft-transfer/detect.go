package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
)

func newDetectCommand(flags *globalFlags, c *console) *cobra.Command {
	var contract string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect whether a contract is ERC-721 or ERC-1155",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.IsValidAddress(contract) {
				return fmt.Errorf("invalid contract address: %s", contract)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, flags, c, false)
			if err != nil {
				return err
			}
			defer a.Close()

			address := common.HexToAddress(contract)
			result := a.detector.Detect(ctx, &address)
			c.Printf("Contract: %s\nChain:    %s\nStandard: %s\n", address.Hex(), chainName(a.chain), result.Type.Label())
			if result.Err != nil {
				return fmt.Errorf("detection incomplete: %w", result.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contract, "contract", "", "Token contract address")
	_ = cmd.MarkFlagRequired("contract")

	return cmd
}
