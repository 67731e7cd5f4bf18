package cmd

import (
	"github.com/spf13/cobra"
)

var walletAddressCmd = &cobra.Command{
	Use:   "wallet:address",
	Short: "Print the signer address for the selected network",
	Long: `Derive the signer account from the network's mnemonic and print its
address and derivation path. The mnemonic itself is never printed.`,
	Args: cobra.NoArgs,
	RunE: runWalletAddress,
}

func init() {
	rootCmd.AddCommand(walletAddressCmd)
}

func runWalletAddress(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	signer, err := s.signer()
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(s.out, map[string]interface{}{
			"network": s.network.Name,
			"address": signer.Address().Hex(),
			"path":    signer.Path().String(),
		})
	}
	s.say("Network: %s\n", s.network.Name)
	s.say("Address: %s\n", signer.Address().Hex())
	s.say("Path:    %s\n", signer.Path().String())
	return nil
}
