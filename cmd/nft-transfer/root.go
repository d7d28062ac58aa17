package main

import (
	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags shared by every command
type globalFlags struct {
	configFile  string
	envPath     string
	autoApprove bool
}

func newRootCommand(c *console) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "nft-transfer",
		Short:         "Transfer ERC-721 and ERC-1155 tokens on EVM chains",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&flags.envPath, "env", "", "Directory holding the .env files (default config/)")
	root.PersistentFlags().BoolVarP(&flags.autoApprove, "yes", "y", false, "Sign transactions without asking for approval")

	root.AddCommand(
		newDetectCommand(flags, c),
		newProbeCommand(flags, c),
		newSendCommand(flags, c),
		newBatchCommand(flags, c),
		newChainsCommand(c),
	)
	return root
}
