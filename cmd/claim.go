package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Bidon15/roundctl/internal/round"
)

var claimRoundCmd = &cobra.Command{
	Use:   "claim:round",
	Short: "Claim allocations for a specific round",
	Long: `Claim the allocations of every eligible X-App for one round in a single
transaction. The contract reverts when there is nothing to claim.

Requires the signer mnemonic for the selected network.`,
	Args: cobra.NoArgs,
	RunE: runClaimRound,
}

var claimPreviousRoundCmd = &cobra.Command{
	Use:   "claim:previous-round",
	Short: "Claim allocations for the previous round",
	Long: `Resolve the previous round and claim its allocations in a single
transaction.

Requires the signer mnemonic for the selected network.`,
	Args: cobra.NoArgs,
	RunE: runClaimPreviousRound,
}

func init() {
	claimRoundCmd.Flags().String("round-id", "", "the round ID (required)")
	_ = claimRoundCmd.MarkFlagRequired("round-id")

	rootCmd.AddCommand(claimRoundCmd)
	rootCmd.AddCommand(claimPreviousRoundCmd)
}

func runClaimRound(cmd *cobra.Command, args []string) error {
	id, raw, err := roundIDFlag(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, backend, err := s.roundClient(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer backend.Close()

	s.say("Claiming allocations for Round %s...\n", raw)

	ctx, cancel := s.writeContext(cmd.Context())
	defer cancel()
	result, err := client.ClaimAllocationsForRound(ctx, id)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(s.out, txOutput(s, client.Address().Hex(), result))
	}
	s.say("Transaction confirmed!\n")
	s.say("Successfully claimed allocations for Round %s\n", raw)
	return nil
}

func runClaimPreviousRound(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, backend, err := s.roundClient(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer backend.Close()

	s.say("Claiming allocations for previous round...\n")

	ctx, cancel := s.writeContext(cmd.Context())
	defer cancel()
	result, err := client.ClaimAllocationsForPreviousRound(ctx)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(s.out, txOutput(s, client.Address().Hex(), result))
	}
	s.say("Transaction confirmed!\n")
	s.say("Successfully claimed allocations for previous round (Round %s)\n", result.RoundID)
	return nil
}

// txOutput is the JSON document for a confirmed transaction.
func txOutput(s *session, contract string, r *round.TxResult) map[string]interface{} {
	out := map[string]interface{}{
		"network":      s.network.Name,
		"contract":     contract,
		"method":       r.Method,
		"tx_hash":      r.TxHash.Hex(),
		"block_number": r.BlockNumber,
		"gas_used":     r.GasUsed,
		"logs":         r.Logs,
	}
	if r.RoundID != nil {
		out["round_id"] = r.RoundID.String()
	}
	return out
}
