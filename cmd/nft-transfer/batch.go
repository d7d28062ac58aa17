package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/form"
	"github.com/feral-file/ff-nft-transfer/internal/transfer"
)

var errAborted = errors.New("transfer aborted")

type batchOptions struct {
	contract  string
	recipient string
	tokens    string
	amounts   string
	force     bool
}

func newBatchCommand(flags *globalFlags, c *console) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Transfer several tokens to one recipient",
		Long: "Transfer several tokens to one recipient.\n" +
			"ERC-721 tokens are sent one transaction per token, with retry or skip on failure.\n" +
			"ERC-1155 tokens are sent in a single safeBatchTransferFrom.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.IsValidAddress(opts.contract) {
				return fmt.Errorf("invalid contract address: %s", opts.contract)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, flags, c, true)
			if err != nil {
				return err
			}
			defer a.Close()

			f := form.TransferForm{
				Contract:  opts.contract,
				Recipient: opts.recipient,
				TokenIDs:  form.SplitList(opts.tokens),
				Amounts:   form.SplitList(opts.amounts),
			}
			if f.Standard, err = a.detect(ctx, common.HexToAddress(opts.contract)); err != nil {
				return err
			}
			req, err := f.Validate()
			if err != nil {
				return err
			}

			if err := checkOwnership(ctx, a, req, opts.force); err != nil {
				return err
			}

			if req.Standard == domain.ContractTypeERC1155 {
				return runERC1155Batch(ctx, a, req)
			}
			return runERC721Batch(ctx, a, req)
		},
	}
	cmd.Flags().StringVar(&opts.contract, "contract", "", "Token contract address")
	cmd.Flags().StringVar(&opts.recipient, "to", "", "Recipient address")
	cmd.Flags().StringVar(&opts.tokens, "tokens", "", "Comma separated token IDs")
	cmd.Flags().StringVar(&opts.amounts, "amounts", "", "Comma separated amounts, one per token (ERC-1155 only)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Submit even when the wallet does not hold every token")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("tokens")

	return cmd
}

// checkOwnership refuses tokens the wallet does not hold, unless forced
func checkOwnership(ctx context.Context, a *app, req *form.Transfer, force bool) error {
	p := a.newProber()
	defer p.Close()

	sender := a.client.Sender()
	var missing []string
	for i, h := range p.Probe(ctx, &req.Contract, &sender, req.TokenIDs, req.Standard) {
		switch {
		case h.Err != nil:
			a.console.Printf("Warning: could not check #%s: %v\n", h.TokenID, h.Err)
		case !h.IsOwner:
			missing = append(missing, "#"+h.TokenID.String())
		case req.Standard == domain.ContractTypeERC1155 && h.Balance.Cmp(req.Amounts[i]) < 0:
			missing = append(missing, fmt.Sprintf("#%s (balance %s)", h.TokenID, h.Balance))
		}
	}
	if len(missing) == 0 {
		return nil
	}

	message := fmt.Sprintf("wallet %s does not hold %s", sender.Hex(), strings.Join(missing, ", "))
	if !force {
		return errors.New(message + " (use --force to submit anyway)")
	}
	a.console.Printf("Warning: %s\n", message)
	return nil
}

func runERC1155Batch(ctx context.Context, a *app, req *form.Transfer) error {
	reporter := newSubmissionReporter(a.console, a.chain)
	batch := transfer.NewBatchExecutor(a.client, transfer.WithObserver(reporter.observe))
	defer batch.Reset()

	a.console.Printf("Transferring %d ERC-1155 token IDs to %s in one transaction\n", len(req.TokenIDs), req.Recipient.Hex())
	if err := batch.BatchTransfer(ctx, req.Contract, req.Recipient, req.TokenIDs, req.Amounts, a.client.Sender()); err != nil {
		return err
	}
	state, err := batch.Wait(ctx)
	if err != nil {
		return err
	}
	return reporter.result(state)
}

func runERC721Batch(ctx context.Context, a *app, req *form.Transfer) error {
	orchestrator := transfer.NewOrchestrator(a.client, a.clock)
	defer orchestrator.Close()

	a.console.Printf("Transferring %d ERC-721 tokens to %s, one transaction each\n", len(req.TokenIDs), req.Recipient.Hex())
	orchestrator.StartTransfer(req.Contract, req.Recipient, req.TokenIDs, a.client.Sender())

	var lastLine string
	for {
		select {
		case <-ctx.Done():
			snapshot := orchestrator.Snapshot()
			orchestrator.Reset()
			a.console.Printf("\nInterrupted\n%s", summary(a.chain, snapshot.Records))
			return ctx.Err()
		case <-orchestrator.Changed():
		}

		s := orchestrator.Snapshot()
		if line := progressLine(s); line != lastLine {
			a.console.Printf("%s\n", line)
			lastLine = line
		}

		if s.IsComplete {
			a.console.Printf("Finished in %s\n%s", s.Elapsed.Round(time.Millisecond), summary(a.chain, s.Records))
			if s.FailedCount > 0 {
				return fmt.Errorf("%d of %d transfers failed", s.FailedCount, s.TotalCount)
			}
			return nil
		}

		if s.FailedTokenID == nil {
			continue
		}
		switch choice, err := askRecovery(ctx, a.console, s.FailedTokenID); {
		case err != nil || choice == recoveryAbort:
			orchestrator.Reset()
			a.console.Printf("%s", summary(a.chain, s.Records))
			if err != nil && !errors.Is(err, errNoInput) {
				return err
			}
			return errAborted
		case choice == recoveryRetry:
			orchestrator.Retry()
		case choice == recoverySkip:
			orchestrator.Skip()
		}
	}
}

type recovery int

const (
	recoveryRetry recovery = iota
	recoverySkip
	recoveryAbort
)

// askRecovery asks how to continue after a token failed before it was broadcast
func askRecovery(ctx context.Context, c *console, tokenID *big.Int) (recovery, error) {
	for {
		answer, err := c.Ask(ctx, fmt.Sprintf("Token #%s was not sent. [r]etry, [s]kip or [a]bort? ", tokenID))
		if err != nil {
			return recoveryAbort, err
		}
		if choice, ok := parseRecovery(answer); ok {
			return choice, nil
		}
	}
}

func parseRecovery(answer string) (recovery, bool) {
	switch answer {
	case "r", "retry":
		return recoveryRetry, true
	case "s", "skip":
		return recoverySkip, true
	case "a", "abort", "q", "quit":
		return recoveryAbort, true
	default:
		return 0, false
	}
}
