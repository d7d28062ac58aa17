package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/form"
)

func newProbeCommand(flags *globalFlags, c *console) *cobra.Command {
	var contract, tokens, account string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Show which tokens an account owns",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.IsValidAddress(contract) {
				return fmt.Errorf("invalid contract address: %s", contract)
			}
			if account != "" && !domain.IsValidAddress(account) {
				return fmt.Errorf("invalid account address: %s", account)
			}
			tokenIDs, err := form.ParseTokenIDs(form.SplitList(tokens))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, flags, c, false)
			if err != nil {
				return err
			}
			defer a.Close()

			holder := a.client.Sender()
			if account != "" {
				holder = common.HexToAddress(account)
			}
			if holder == (common.Address{}) {
				return errors.New("--account is required when no wallet is configured")
			}

			contractAddress := common.HexToAddress(contract)
			contractType, err := a.detect(ctx, contractAddress)
			if err != nil {
				return err
			}

			p := a.newProber()
			defer p.Close()

			c.Printf("%s %s, account %s\n", contractType.Label(), contractAddress.Hex(), holder.Hex())
			for _, h := range p.Probe(ctx, &contractAddress, &holder, tokenIDs, contractType) {
				c.Printf("  %s\n", describeHolding(h, contractType))
			}

			if contractType == domain.ContractTypeERC721 {
				balance, err := p.ERC721Balance(ctx, contractAddress, holder)
				if err != nil {
					c.Printf("Total owned: unavailable (%v)\n", err)
				} else {
					c.Printf("Total owned: %s\n", balance)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contract, "contract", "", "Token contract address")
	cmd.Flags().StringVar(&tokens, "tokens", "", "Comma separated token IDs")
	cmd.Flags().StringVar(&account, "account", "", "Account to check (default: wallet address)")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("tokens")

	return cmd
}

func describeHolding(h domain.Holding, contractType domain.ContractType) string {
	if h.Err != nil {
		return fmt.Sprintf("#%s  lookup failed: %v", h.TokenID, h.Err)
	}
	if contractType == domain.ContractTypeERC1155 {
		return fmt.Sprintf("#%s  balance %s", h.TokenID, h.Balance)
	}
	if h.IsOwner {
		return fmt.Sprintf("#%s  owned", h.TokenID)
	}
	owner := "unknown"
	if h.Owner != nil {
		owner = domain.ShortenAddress(h.Owner.Hex(), 4)
	}
	return fmt.Sprintf("#%s  not owned (owner %s)", h.TokenID, owner)
}
