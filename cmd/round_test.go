package cmd

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/roundctl/internal/chain"
	"github.com/Bidon15/roundctl/internal/config"
	"github.com/Bidon15/roundctl/internal/round"
)

var (
	appA = common.HexToHash("0x9643ed1637948cc571b23f836ade2bdb104de88e627fa6e8e3ffef1ee5a1739a")
	appB = common.HexToHash("0x0b54a094b877a25bdc95b4431eaa1e2206b1ddfe0b54a094b877a25bdc95b443")
	appC = common.HexToHash("0x01")
)

func ether(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad amount " + s)
	}
	return v
}

func TestRoundCurrentAndPrevious(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "current", args: []string{"round:current"}, want: "Current Round ID: 5\n"},
		{name: "previous", args: []string{"round:previous"}, want: "Previous Round ID: 4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t, 5)
			require.NoError(t, c.run(tt.args...))

			out := c.out.String()
			assert.Contains(t, out, "Network: local-development\n")
			assert.Contains(t, out, "Using contract address: "+localContract(t)+"\n")
			assert.Contains(t, out, tt.want)
			assert.Equal(t, []string{"http://localhost:8545"}, c.dialed)
		})
	}
}

func TestRoundPrevious_NoRoundYet(t *testing.T) {
	c := newCLI(t, 0)
	require.NoError(t, c.run("round:previous"))
	assert.Contains(t, c.out.String(), "Previous Round ID: 0\n")
}

func TestRoundPrevious_JSON(t *testing.T) {
	tests := []struct {
		name      string
		current   uint64
		wantID    string
		wantEnded bool
	}{
		{name: "no round ended", current: 1, wantID: "0", wantEnded: false},
		{name: "round ended", current: 5, wantID: "4", wantEnded: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t, tt.current)
			require.NoError(t, c.run("--json", "round:previous"))

			var got map[string]interface{}
			require.NoError(t, json.Unmarshal(c.out.Bytes(), &got))
			assert.Equal(t, tt.wantID, got["previous_round_id"])
			assert.Equal(t, tt.wantEnded, got["round_ended"])
		})
	}
}

func TestRoundCurrent_JSON(t *testing.T) {
	c := newCLI(t, 5)
	require.NoError(t, c.run("--json", "round:current"))

	assert.NotContains(t, c.out.String(), "Using contract address")
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(c.out.Bytes(), &got))
	assert.Equal(t, "5", got["current_round_id"])
	assert.Equal(t, config.NetworkLocalDevelopment, got["network"])
	assert.Equal(t, localContract(t), got["contract"])
	assert.Equal(t, []string{round.MethodGetCurrentRoundID}, c.backend.Calls(), "one read call")
}

func TestRoundCheckDependencies(t *testing.T) {
	c := newCLI(t, 1)
	deps := round.Dependencies{
		Emissions:         common.HexToAddress("0x475936657ed1c6da36880218662fd6feb362fe3c"),
		XAllocationPool:   common.HexToAddress("0x1a98db0a37b040c00be156ef2fc81983f65a7fbc"),
		XAllocationVoting: common.HexToAddress("0xe5b2794c12432459d1a2739d7020e75a54caa930"),
		X2EarnApps:        common.HexToAddress("0x5a08024dccf4bd6a77a22e9fad2e7da3c307b01e"),
	}
	c.model.SetDependencies(deps)

	require.NoError(t, c.run("round:check-dependencies"))
	out := c.out.String()
	assert.Contains(t, out, "Emissions contract address: "+deps.Emissions.Hex()+"\n")
	assert.Contains(t, out, "XAllocationPool contract address: "+deps.XAllocationPool.Hex()+"\n")
	assert.Contains(t, out, "XAllocationVoting contract address: "+deps.XAllocationVoting.Hex()+"\n")
	assert.Contains(t, out, "X2EarnApps contract address: "+deps.X2EarnApps.Hex()+"\n")
}

func TestRoundRead_RemoteError(t *testing.T) {
	c := newCLI(t, 1)
	c.backend.CallErr = assert.AnError

	err := c.run("round:current")
	require.ErrorIs(t, err, chain.ErrRemoteRead)
	assert.Contains(t, err.Error(), round.MethodGetCurrentRoundID)
}

func TestAppsLists(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "all",
			args: []string{"apps:all", "--round-id", "3"},
			want: "All X-Apps for Round 3:\n[\n  " + appA.Hex() + ",\n  " + appB.Hex() + ",\n  " + appC.Hex() + "\n]\nTotal: 3 apps\n",
		},
		{
			name: "unclaimed",
			args: []string{"apps:unclaimed", "--round-id", "3"},
			want: "Unclaimed X-Apps for Round 3:\n[\n  " + appA.Hex() + ",\n  " + appC.Hex() + "\n]\nTotal: 2 unclaimed apps\n",
		},
		{
			name: "unclaimed non-zero",
			args: []string{"apps:unclaimed-non-zero", "--round-id", "3"},
			want: "Unclaimed X-Apps with Non-Zero Amounts for Round 3:\n[\n  " + appA.Hex() + "\n]\nTotal: 1 unclaimed apps with non-zero amounts\n",
		},
		{
			name: "empty round",
			args: []string{"apps:all", "--round-id", "0x2"},
			want: "All X-Apps for Round 0x2:\n[]\nTotal: 0 apps\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t, 5)
			c.model.AddApp(3, appA, ether("1500000000000000000"))
			c.model.AddApp(3, appB, ether("2000000000000000000"))
			c.model.AddApp(3, appC, big.NewInt(0))
			c.model.MarkClaimed(3, appB)

			require.NoError(t, c.run(tt.args...))
			assert.Contains(t, c.out.String(), tt.want)
		})
	}
}

func TestAppsUnclaimedWithAmounts(t *testing.T) {
	c := newCLI(t, 5)
	c.model.AddApp(3, appA, ether("1500000000000000000"))
	c.model.AddApp(3, appC, big.NewInt(0))

	require.NoError(t, c.run("apps:unclaimed-with-amounts", "--round-id", "3"))
	want := "Unclaimed X-Apps with Amounts for Round 3:\n" +
		"AppID                                                                  | Amount\n" +
		"-----------------------------------------------------------------------|-----------------\n" +
		appA.Hex() + " | 1.5 B3TR\n" +
		appC.Hex() + " | 0.0 B3TR\n" +
		"\nTotal: 2 unclaimed apps\n"
	assert.Contains(t, c.out.String(), want)
}

func TestAppsUnclaimedWithAmounts_JSON(t *testing.T) {
	c := newCLI(t, 5)
	c.model.AddApp(3, appA, ether("1500000000000000000"))

	require.NoError(t, c.run("--json", "apps:unclaimed-with-amounts", "--round-id", "3"))
	var got struct {
		RoundID string `json:"round_id"`
		Apps    []struct {
			AppID     string `json:"app_id"`
			AmountWei string `json:"amount_wei"`
			Amount    string `json:"amount"`
		} `json:"apps"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(c.out.Bytes(), &got))
	assert.Equal(t, "3", got.RoundID)
	require.Len(t, got.Apps, 1)
	assert.Equal(t, appA.Hex(), got.Apps[0].AppID)
	assert.Equal(t, "1500000000000000000", got.Apps[0].AmountWei)
	assert.Equal(t, "1.5", got.Apps[0].Amount)
	assert.Equal(t, 1, got.Total)
}

func TestAppsHasClaimed(t *testing.T) {
	tests := []struct {
		name    string
		claimed bool
		want    string
	}{
		{name: "claimed", claimed: true, want: "true"},
		{name: "not claimed", claimed: false, want: "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t, 5)
			c.model.AddApp(3, appA, ether("1"))
			if tt.claimed {
				c.model.MarkClaimed(3, appA)
			}

			require.NoError(t, c.run("apps:has-claimed", "--round-id", "3", "--app-id", appA.Hex()))
			assert.Contains(t, c.out.String(), "Has App "+appA.Hex()+" claimed for Round 3: "+tt.want+"\n")
		})
	}
}

func TestAppsArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "negative round", args: []string{"apps:all", "--round-id", "-1"}, wantErr: "invalid --round-id"},
		{name: "not a number", args: []string{"apps:unclaimed", "--round-id", "three"}, wantErr: "invalid --round-id"},
		{name: "missing round", args: []string{"apps:all"}, wantErr: "round-id"},
		{name: "short app id", args: []string{"apps:has-claimed", "--round-id", "3", "--app-id", "0x1234"}, wantErr: "invalid --app-id"},
		{name: "missing app id", args: []string{"apps:has-claimed", "--round-id", "3"}, wantErr: "app-id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t, 5)
			err := c.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, c.backend.Calls(), "no call is made for invalid arguments")
		})
	}
}

func TestClaimRound(t *testing.T) {
	c := newCLI(t, 5)
	c.model.AddApp(3, appA, ether("1500000000000000000"))

	require.NoError(t, c.run("claim:round", "--round-id", "3"))
	out := c.out.String()
	assert.Contains(t, out, "Claiming allocations for Round 3...\n")
	assert.Contains(t, out, "Transaction hash: 0x")
	assert.Contains(t, out, "Transaction confirmed!\n")
	assert.Contains(t, out, "Successfully claimed allocations for Round 3\n")
	assert.True(t, c.model.Claimed(3, appA))

	sent := c.backend.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, out, sent[0].Hash().Hex())
}

func TestClaimRound_NothingToClaim(t *testing.T) {
	c := newCLI(t, 6)
	c.model.RevertWhenNothingToClaim = true

	err := c.run("claim:round", "--round-id", "5")
	require.ErrorIs(t, err, chain.ErrReverted)
	assert.Contains(t, err.Error(), round.MethodClaimAllocationsForRound)
	assert.Contains(t, err.Error(), "round 5")
	assert.NotContains(t, c.out.String(), "Transaction confirmed!")
}

func TestClaimRound_NoMnemonic(t *testing.T) {
	c := newCLI(t, 5)
	delete(c.env, "MNEMONIC")

	err := c.run("claim:round", "--round-id", "3")
	require.ErrorIs(t, err, config.ErrConfiguration)
	assert.Contains(t, err.Error(), "MNEMONIC")
	assert.Empty(t, c.dialed, "nothing is dialed without a signer")
	assert.Empty(t, c.backend.Sent())
}

func TestClaimRound_InvalidMnemonic(t *testing.T) {
	c := newCLI(t, 5)
	c.env["MNEMONIC"] = "not a valid mnemonic phrase"

	err := c.run("claim:round", "--round-id", "3")
	require.ErrorIs(t, err, config.ErrConfiguration)
	assert.NotContains(t, err.Error(), "not a valid mnemonic phrase")
	assert.NotContains(t, c.out.String(), "not a valid mnemonic phrase")
}

func TestClaimPreviousRound(t *testing.T) {
	c := newCLI(t, 5)
	c.model.AddApp(4, appA, ether("2"))

	require.NoError(t, c.run("claim:previous-round"))
	out := c.out.String()
	assert.Contains(t, out, "Claiming allocations for previous round...\n")
	assert.Contains(t, out, "Transaction confirmed!\n")
	assert.Contains(t, out, "(Round 4)")
	assert.True(t, c.model.Claimed(4, appA))
}

func TestClaimPreviousRound_JSON(t *testing.T) {
	c := newCLI(t, 5)
	c.model.AddApp(4, appA, ether("2"))

	require.NoError(t, c.run("--json", "claim:previous-round"))
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(c.out.Bytes(), &got))
	assert.Equal(t, round.MethodClaimAllocationsForPreviousRound, got["method"])
	assert.Equal(t, "4", got["round_id"])
	assert.Equal(t, c.backend.Sent()[0].Hash().Hex(), got["tx_hash"])
}

func TestRoundStartNew(t *testing.T) {
	c := newCLI(t, 5)
	c.model.Operator = common.HexToAddress(hardhatAccount0)

	require.NoError(t, c.run("round:start-new"))
	out := c.out.String()
	assert.Contains(t, out, "Starting new round and distributing allocations...\n")
	assert.Contains(t, out, "Transaction hash: ")
	assert.Contains(t, out, "Transaction confirmed!\n")
	assert.Contains(t, out, "New round started. Current round is now: 6\n")
	assert.Equal(t, uint64(6), c.model.Current())
}

func TestRoundStartNew_AccountIndex(t *testing.T) {
	c := newCLI(t, 5)
	c.model.Operator = common.HexToAddress(hardhatAccount0)

	err := c.run("--account-index", "1", "round:start-new")
	require.ErrorIs(t, err, chain.ErrReverted)
	assert.Equal(t, uint64(5), c.model.Current(), "a reverted start leaves the round unchanged")
}

func TestRoundStartNew_SubmitFails(t *testing.T) {
	c := newCLI(t, 5)
	c.backend.SendErr = assert.AnError

	err := c.run("round:start-new")
	require.ErrorIs(t, err, chain.ErrRemoteWrite)
	assert.NotContains(t, c.out.String(), "Transaction confirmed!")
}
