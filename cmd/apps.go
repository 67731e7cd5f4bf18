package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Bidon15/roundctl/internal/round"
)

var appsAllCmd = &cobra.Command{
	Use:   "apps:all",
	Short: "Get all X-Apps for a specific round",
	Args:  cobra.NoArgs,
	RunE:  runAppsAll,
}

var appsUnclaimedCmd = &cobra.Command{
	Use:   "apps:unclaimed",
	Short: "Get unclaimed X-Apps for a specific round",
	Args:  cobra.NoArgs,
	RunE:  runAppsUnclaimed,
}

var appsUnclaimedWithAmountsCmd = &cobra.Command{
	Use:   "apps:unclaimed-with-amounts",
	Short: "Get unclaimed X-Apps with their claimable amounts",
	Args:  cobra.NoArgs,
	RunE:  runAppsUnclaimedWithAmounts,
}

var appsUnclaimedNonZeroCmd = &cobra.Command{
	Use:   "apps:unclaimed-non-zero",
	Short: "Get unclaimed X-Apps with non-zero amounts",
	Args:  cobra.NoArgs,
	RunE:  runAppsUnclaimedNonZero,
}

var appsHasClaimedCmd = &cobra.Command{
	Use:   "apps:has-claimed",
	Short: "Check if a specific X-App has claimed its allocation",
	Long: `Check if a specific X-App has claimed its allocation for a round.

Examples:
  roundctl apps:has-claimed --round-id 3 --app-id 0x9643ed1637948cc571b23f836ade2bdb104de88e627fa6e8e3ffef1ee5a1739a`,
	Args: cobra.NoArgs,
	RunE: runAppsHasClaimed,
}

func init() {
	for _, c := range []*cobra.Command{appsAllCmd, appsUnclaimedCmd, appsUnclaimedWithAmountsCmd, appsUnclaimedNonZeroCmd, appsHasClaimedCmd} {
		c.Flags().String("round-id", "", "the round ID (required)")
		_ = c.MarkFlagRequired("round-id")
		rootCmd.AddCommand(c)
	}
	appsHasClaimedCmd.Flags().String("app-id", "", "the X-App ID, 32-byte hex (required)")
	_ = appsHasClaimedCmd.MarkFlagRequired("app-id")
}

// roundIDFlag parses --round-id, keeping the raw input for narration.
func roundIDFlag(cmd *cobra.Command) (*big.Int, string, error) {
	raw, _ := cmd.Flags().GetString("round-id")
	id, err := round.ParseRoundID(raw)
	if err != nil {
		return nil, raw, fmt.Errorf("invalid --round-id: %w", err)
	}
	return id, raw, nil
}

// appListQuery is the shared shape of the list-returning app commands.
type appListQuery struct {
	title string
	noun  string
	read  func(c *round.Client, ctx context.Context, id *big.Int) ([]common.Hash, error)
}

func runAppList(cmd *cobra.Command, q appListQuery) error {
	id, raw, err := roundIDFlag(cmd)
	if err != nil {
		return err
	}
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
	apps, err := q.read(client, ctx, id)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(s.out, map[string]interface{}{
			"network":  s.network.Name,
			"contract": client.Address().Hex(),
			"round_id": id.String(),
			"apps":     hexes(apps),
			"total":    len(apps),
		})
	}
	s.say("%s for Round %s:\n", q.title, raw)
	s.say("%s\n", round.FormatBytes32Array(apps))
	s.say("Total: %d %s\n", len(apps), q.noun)
	return nil
}

func runAppsAll(cmd *cobra.Command, args []string) error {
	return runAppList(cmd, appListQuery{
		title: "All X-Apps",
		noun:  "apps",
		read:  (*round.Client).AllAppsForRound,
	})
}

func runAppsUnclaimed(cmd *cobra.Command, args []string) error {
	return runAppList(cmd, appListQuery{
		title: "Unclaimed X-Apps",
		noun:  "unclaimed apps",
		read:  (*round.Client).UnclaimedAppsForRound,
	})
}

func runAppsUnclaimedNonZero(cmd *cobra.Command, args []string) error {
	return runAppList(cmd, appListQuery{
		title: "Unclaimed X-Apps with Non-Zero Amounts",
		noun:  "unclaimed apps with non-zero amounts",
		read:  (*round.Client).UnclaimedAppsWithNonZeroAmounts,
	})
}

func runAppsUnclaimedWithAmounts(cmd *cobra.Command, args []string) error {
	id, raw, err := roundIDFlag(cmd)
	if err != nil {
		return err
	}
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
	allocations, err := client.UnclaimedAppsWithAmounts(ctx, id)
	if err != nil {
		return err
	}

	if jsonOut {
		type entry struct {
			AppID     string `json:"app_id"`
			AmountWei string `json:"amount_wei"`
			Amount    string `json:"amount"`
		}
		entries := make([]entry, allocations.Len())
		for i, appID := range allocations.AppIDs {
			entries[i] = entry{
				AppID:     appID.Hex(),
				AmountWei: allocations.Amounts[i].String(),
				Amount:    round.FormatEther(allocations.Amounts[i]),
			}
		}
		return printJSON(s.out, map[string]interface{}{
			"network":  s.network.Name,
			"contract": client.Address().Hex(),
			"round_id": id.String(),
			"apps":     entries,
			"total":    len(entries),
		})
	}

	s.say("Unclaimed X-Apps with Amounts for Round %s:\n", raw)
	s.say("AppID                                                                  | Amount\n")
	s.say("-----------------------------------------------------------------------|-----------------\n")
	for i, appID := range allocations.AppIDs {
		s.say("%s | %s B3TR\n", appID.Hex(), round.FormatEther(allocations.Amounts[i]))
	}
	s.say("\nTotal: %d unclaimed apps\n", allocations.Len())
	return nil
}

func runAppsHasClaimed(cmd *cobra.Command, args []string) error {
	id, rawRound, err := roundIDFlag(cmd)
	if err != nil {
		return err
	}
	rawApp, _ := cmd.Flags().GetString("app-id")
	appID, err := round.ParseAppID(rawApp)
	if err != nil {
		return fmt.Errorf("invalid --app-id: %w", err)
	}

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
	claimed, err := client.HasAppClaimed(ctx, id, appID)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(s.out, map[string]interface{}{
			"network":  s.network.Name,
			"contract": client.Address().Hex(),
			"round_id": id.String(),
			"app_id":   appID.Hex(),
			"claimed":  claimed,
		})
	}
	s.say("Has App %s claimed for Round %s: %t\n", rawApp, rawRound, claimed)
	return nil
}

func hexes(ids []common.Hash) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
