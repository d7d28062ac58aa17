package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/form"
	"github.com/feral-file/ff-nft-transfer/internal/transfer"
)

func newSendCommand(flags *globalFlags, c *console) *cobra.Command {
	var contract, recipient, token, amount string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Transfer a single token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.IsValidAddress(contract) {
				return fmt.Errorf("invalid contract address: %s", contract)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, flags, c, true)
			if err != nil {
				return err
			}
			defer a.Close()

			f := form.TransferForm{
				Contract:  contract,
				Recipient: recipient,
				TokenIDs:  []string{token},
			}
			if amount != "" {
				f.Amounts = []string{amount}
			}
			if f.Standard, err = a.detect(ctx, common.HexToAddress(contract)); err != nil {
				return err
			}
			if f.Standard == domain.ContractTypeERC1155 && amount == "" {
				f.Amounts = []string{"1"}
			}
			req, err := f.Validate()
			if err != nil {
				return err
			}

			sender := a.client.Sender()
			call := transfer.ERC721Transfer(req.Contract, sender, req.Recipient, req.TokenIDs[0])
			if req.Standard == domain.ContractTypeERC1155 {
				call = transfer.ERC1155Transfer(req.Contract, sender, req.Recipient, req.TokenIDs[0], req.Amounts[0])
			}

			reporter := newSubmissionReporter(c, a.chain)
			executor := transfer.NewExecutor(a.client, transfer.WithObserver(reporter.observe))
			defer executor.Reset()

			c.Printf("Transferring %s #%s to %s\n", req.Standard.Label(), req.TokenIDs[0], req.Recipient.Hex())
			executor.Submit(ctx, call)
			state, err := executor.Wait(ctx)
			if err != nil {
				return err
			}
			return reporter.result(state)
		},
	}
	cmd.Flags().StringVar(&contract, "contract", "", "Token contract address")
	cmd.Flags().StringVar(&recipient, "to", "", "Recipient address")
	cmd.Flags().StringVar(&token, "token", "", "Token ID")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount to transfer (ERC-1155 only, default 1)")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}
