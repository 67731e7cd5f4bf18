package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Bidon15/roundctl/internal/round"
)

var roundCheckDependenciesCmd = &cobra.Command{
	Use:   "round:check-dependencies",
	Short: "Check the contract dependencies",
	Long: `Read the four contracts B3trRound was initialized with: Emissions,
XAllocationPool, XAllocationVoting and X2EarnApps.`,
	Args: cobra.NoArgs,
	RunE: runRoundCheckDependencies,
}

var roundCurrentCmd = &cobra.Command{
	Use:   "round:current",
	Short: "Get the current round ID",
	Args:  cobra.NoArgs,
	RunE:  runRoundCurrent,
}

var roundPreviousCmd = &cobra.Command{
	Use:   "round:previous",
	Short: "Get the previous round ID",
	Long:  `Get the previous round ID. 0 means no round has ended yet.`,
	Args:  cobra.NoArgs,
	RunE:  runRoundPrevious,
}

var roundStartNewCmd = &cobra.Command{
	Use:   "round:start-new",
	Short: "Start a new round and distribute allocations",
	Long: `Close the current round and open the next one in a single transaction,
then print the new current round ID.

Requires the signer mnemonic for the selected network.`,
	Args: cobra.NoArgs,
	RunE: runRoundStartNew,
}

func init() {
	rootCmd.AddCommand(roundCheckDependenciesCmd)
	rootCmd.AddCommand(roundCurrentCmd)
	rootCmd.AddCommand(roundPreviousCmd)
	rootCmd.AddCommand(roundStartNewCmd)
}

func runRoundCheckDependencies(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, backend, err := s.roundClient(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, cancel := s.readContext(cmd.Context())
	defer cancel()
	deps, err := client.CheckDependencies(ctx)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(s.out, map[string]interface{}{
			"network":      s.network.Name,
			"contract":     client.Address().Hex(),
			"dependencies": deps,
		})
	}
	s.say("Emissions contract address: %s\n", deps.Emissions.Hex())
	s.say("XAllocationPool contract address: %s\n", deps.XAllocationPool.Hex())
	s.say("XAllocationVoting contract address: %s\n", deps.XAllocationVoting.Hex())
	s.say("X2EarnApps contract address: %s\n", deps.X2EarnApps.Hex())
	return nil
}

func runRoundCurrent(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, backend, err := s.roundClient(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, cancel := s.readContext(cmd.Context())
	defer cancel()
	id, err := client.CurrentRoundID(ctx)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(s.out, map[string]interface{}{
			"network":          s.network.Name,
			"contract":         client.Address().Hex(),
			"current_round_id": id.String(),
		})
	}
	s.say("Current Round ID: %s\n", id)
	return nil
}

func runRoundPrevious(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, backend, err := s.roundClient(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, cancel := s.readContext(cmd.Context())
	defer cancel()
	id, err := client.PreviousRoundID(ctx)
	if err != nil {
		return err
	}
	ended := !round.IsNoRound(id)
	if !ended {
		s.logger.Debug("no round has ended yet")
	}

	if jsonOut {
		return printJSON(s.out, map[string]interface{}{
			"network":           s.network.Name,
			"contract":          client.Address().Hex(),
			"previous_round_id": id.String(),
			"round_ended":       ended,
		})
	}
	s.say("Previous Round ID: %s\n", id)
	return nil
}

func runRoundStartNew(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, backend, err := s.roundClient(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer backend.Close()

	s.say("Starting new round and distributing allocations...\n")

	ctx, cancel := s.writeContext(cmd.Context())
	defer cancel()
	result, err := client.StartNewRoundAndDistributeAllocations(ctx)
	if result != nil {
		s.say("Transaction confirmed!\n")
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(s.out, txOutput(s, client.Address().Hex(), result))
	}
	s.say("New round started. Current round is now: %s\n", result.RoundID)
	return nil
}
