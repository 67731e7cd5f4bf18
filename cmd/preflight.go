package cmd

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Bidon15/roundctl/internal/preflight"
)

var networkPreflightCmd = &cobra.Command{
	Use:   "network:preflight",
	Short: "Check that the selected network is usable",
	Long: `Run pre-flight checks against the selected network: the RPC endpoint
answers, the chain ID matches, contract code is deployed at the contract
address and, with --signer, the signer account can pay for gas.

Examples:
  roundctl --network testnet network:preflight --signer
  roundctl network:preflight --address 0xe32f25c825b8515ade62541cf6cc195c0e211855`,
	Args: cobra.NoArgs,
	RunE: runNetworkPreflight,
}

func init() {
	networkPreflightCmd.Flags().String("address", "", "contract address to check (default from network)")
	networkPreflightCmd.Flags().Bool("signer", false, "also check the signer account balance (needs the mnemonic)")
	rootCmd.AddCommand(networkPreflightCmd)
}

func runNetworkPreflight(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	address := s.network.ContractAddress
	if raw, _ := cmd.Flags().GetString("address"); raw != "" {
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("invalid --address: %q is not a hex address", raw)
		}
		address = common.HexToAddress(raw)
	}
	url, err := s.settings.Endpoint(s.network)
	if err != nil {
		return err
	}

	req := &preflight.Request{
		Network:         s.network.Name,
		RPCURL:          url,
		ChainID:         s.network.ChainID,
		ContractAddress: address,
	}
	if withSigner, _ := cmd.Flags().GetBool("signer"); withSigner {
		signer, err := s.signer()
		if err != nil {
			return err
		}
		from := signer.Address()
		req.SignerAddress = &from
	}

	checker := preflight.NewChecker(dialBackend).WithTimeout(s.settings.Timeout)

	response, err := checker.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	if jsonOut {
		if err := printJSON(s.out, map[string]interface{}{
			"network":  s.network.Name,
			"contract": address.Hex(),
			"ok":       response.OK,
			"checks":   response.Checks,
		}); err != nil {
			return err
		}
	} else {
		s.say("Network: %s\n", s.network.Name)
		s.say("Contract: %s\n\n", address.Hex())

		w := newTable(s.out)
		printTableHeader(w, s.out, "CHECK", "STATUS", "MESSAGE")
		for _, check := range response.Checks {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", check.Name, checkStatus(s, check), check.Message)
		}
		_ = w.Flush()
	}

	if !response.OK {
		failed := make([]string, 0, len(response.Failed()))
		for _, name := range response.Failed() {
			failed = append(failed, string(name))
		}
		return fmt.Errorf("preflight failed for network %s: %s", s.network.Name, strings.Join(failed, ", "))
	}
	return nil
}

func checkStatus(s *session, check preflight.CheckResult) string {
	switch {
	case check.Skipped:
		return colorYellow(s.out, "skipped")
	case check.Passed:
		return colorGreen(s.out, "ok")
	default:
		return colorRed(s.out, "failed")
	}
}
