package cmd

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Bidon15/roundctl/internal/chain/chaintest"
	"github.com/Bidon15/roundctl/internal/config"
	"github.com/Bidon15/roundctl/internal/deploy"
	"github.com/Bidon15/roundctl/internal/preflight"
	"github.com/Bidon15/roundctl/internal/round"
)

func writeArtifacts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(content string, elem ...string) {
		path := filepath.Join(append([]string{dir}, elem...)...)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write(`{"contractName":"B3trRound","abi":[],"bytecode":"0x6080604052"}`,
		"contracts", "B3trRound.sol", "B3trRound.json")
	write(`{"contractName":"ERC1967Proxy","abi":[],"bytecode":"0x60a0604052"}`,
		"@openzeppelin", "ERC1967Proxy.sol", "ERC1967Proxy.json")
	write(`{"contractName":"VetDomainsVerifyMock","abi":[],"bytecode":"0x6001"}`,
		"contracts", "mocks", "VetDomainsVerifyMock.sol", "VetDomainsVerifyMock.json")
	return dir
}

func TestDeployB3trRound(t *testing.T) {
	c := newCLI(t, 1)
	c.model.AddApp(0, appA, big.NewInt(0))
	dir := writeArtifacts(t)
	output := filepath.Join(t.TempDir(), "deployments", "local.yaml")
	deployer := common.HexToAddress(hardhatAccount0)

	require.NoError(t, c.run("deploy:b3tr-round", "--artifacts-dir", dir, "--output", output,
		"--emissions", "0x66898f98409db20ed6a1bf0021334b7897eb0688"))

	impl := crypto.CreateAddress(deployer, 0)
	proxy := crypto.CreateAddress(deployer, 1)
	out := c.out.String()
	for _, want := range []string{
		"Deploying B3trRound contract using proxy pattern...\n",
		"Network: local-development\n",
		"Deploying with account: " + deployer.Hex() + "\n",
		"Implementation deployed to: " + impl.Hex() + "\n",
		"Proxy deployed to: " + proxy.Hex() + "\n",
		"B3trRound (through proxy) initialized!\n",
		"Current round ID: 1\n",
		"Previous round ID: 0\n",
		"Unclaimed apps for previous round: [\n  " + appA.Hex() + "\n]\n",
		"Deployment record written to " + output,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Warning:")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var record deploy.Record
	require.NoError(t, yaml.Unmarshal(data, &record))
	assert.Equal(t, config.NetworkLocalDevelopment, record.Network)
	assert.Equal(t, uint64(1337), record.ChainID)
	assert.Equal(t, deployer.Hex(), record.Deployer)
	require.Len(t, record.Contracts, 2)
	assert.Equal(t, proxy.Hex(), record.Contracts[1].Address)
	assert.Equal(t, impl.Hex(), record.Contracts[1].Implementation)
	require.NotNil(t, record.Dependencies)
	assert.Equal(t, "0x66898f98409db20ed6a1bf0021334b7897eb0688", record.Dependencies.Emissions)
	assert.Equal(t, "0x1a98db0a37b040c00be156ef2fc81983f65a7fbc", record.Dependencies.XAllocationPool)
}

func TestDeployB3trRound_InvalidDependency(t *testing.T) {
	c := newCLI(t, 1)

	err := c.run("deploy:b3tr-round", "--artifacts-dir", writeArtifacts(t), "--x2-earn-apps", "0x1234")
	require.ErrorIs(t, err, config.ErrConfiguration)
	assert.Contains(t, err.Error(), "X2EarnApps")
	assert.Empty(t, c.backend.Deployments())
}

func TestDeployB3trRound_MissingArtifacts(t *testing.T) {
	c := newCLI(t, 1)

	err := c.run("deploy:b3tr-round", "--artifacts-dir", t.TempDir())
	require.ErrorIs(t, err, deploy.ErrArtifactNotFound)
	assert.Empty(t, c.backend.Deployments())
}

func TestDeployB3trRound_VerificationWarnings(t *testing.T) {
	c := newCLI(t, 1)
	c.backend = chaintest.New(round.ABI())

	require.NoError(t, c.run("deploy:b3tr-round", "--artifacts-dir", writeArtifacts(t)))
	out := c.out.String()
	assert.Contains(t, out, "Proxy deployed to:")
	assert.Contains(t, out, "Warning: error calling contract methods:")
	assert.NotContains(t, out, "Current round ID:")
}

func TestDeployVerifyMock_JSON(t *testing.T) {
	c := newCLI(t, 1)

	require.NoError(t, c.run("--json", "deploy:verify-mock", "--artifacts-dir", writeArtifacts(t)))
	var got struct {
		Network string `json:"network"`
		ChainID uint64 `json:"chain_id"`
		Result  struct {
			Contract string `json:"contract"`
			Address  string `json:"address"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(c.out.Bytes(), &got))
	assert.Equal(t, config.NetworkLocalDevelopment, got.Network)
	assert.Equal(t, uint64(1337), got.ChainID)
	assert.Equal(t, deploy.ContractVetDomainsVerifyMock, got.Result.Contract)
	assert.True(t, common.IsHexAddress(got.Result.Address))
	require.Len(t, c.backend.Deployments(), 1)
	assert.Equal(t, []byte{0x60, 0x01}, c.backend.Deployments()[0])
}

func TestNetworkPreflight(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		setup     func(c *cli)
		wantErr   bool
		wantCheck map[preflight.CheckName]string
	}{
		{
			name: "all checks pass",
			args: []string{"--json", "network:preflight", "--signer"},
			setup: func(c *cli) {
				c.backend.SetCode(common.HexToAddress(localContract(t)), []byte{0x60, 0x80})
				c.backend.SetBalance(common.HexToAddress(hardhatAccount0), big.NewInt(1e18))
			},
			wantCheck: map[preflight.CheckName]string{
				preflight.CheckRPCReachable:  "passed",
				preflight.CheckChainIDMatch:  "skipped",
				preflight.CheckContractCode:  "passed",
				preflight.CheckSignerBalance: "passed",
			},
		},
		{
			name:    "no code at contract",
			args:    []string{"--json", "network:preflight"},
			setup:   func(c *cli) {},
			wantErr: true,
			wantCheck: map[preflight.CheckName]string{
				preflight.CheckRPCReachable: "passed",
				preflight.CheckContractCode: "failed",
			},
		},
		{
			name: "address override",
			args: []string{"--json", "network:preflight", "--address", "0x3aaeCeb6702A5D3999399437B601e8D04d70dD6E"},
			setup: func(c *cli) {
				c.backend.SetCode(common.HexToAddress("0x3aaeCeb6702A5D3999399437B601e8D04d70dD6E"), []byte{0x60})
			},
			wantCheck: map[preflight.CheckName]string{
				preflight.CheckContractCode: "passed",
			},
		},
		{
			name: "chain id mismatch on testnet",
			args: []string{"--json", "--network", "testnet", "--rpc-url", "http://node:8669", "network:preflight"},
			setup: func(c *cli) {
				c.backend.SetCode(common.HexToAddress("0x3aaeCeb6702A5D3999399437B601e8D04d70dD6E"), []byte{0x60})
			},
			wantErr: true,
			wantCheck: map[preflight.CheckName]string{
				preflight.CheckChainIDMatch: "failed",
				preflight.CheckContractCode: "passed",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t, 1)
			tt.setup(c)

			err := c.run(tt.args...)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "preflight failed")
			} else {
				require.NoError(t, err)
			}

			var got struct {
				OK     bool                    `json:"ok"`
				Checks []preflight.CheckResult `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(c.out.Bytes(), &got))
			assert.Equal(t, !tt.wantErr, got.OK)

			status := make(map[preflight.CheckName]string)
			for _, check := range got.Checks {
				switch {
				case check.Skipped:
					status[check.Name] = "skipped"
				case check.Passed:
					status[check.Name] = "passed"
				default:
					status[check.Name] = "failed"
				}
			}
			for name, want := range tt.wantCheck {
				assert.Equal(t, want, status[name], name)
			}
		})
	}
}

func TestNetworkPreflight_Table(t *testing.T) {
	c := newCLI(t, 1)
	c.backend.SetCode(common.HexToAddress(localContract(t)), []byte{0x60})

	require.NoError(t, c.run("network:preflight"))
	out := c.out.String()
	assert.Contains(t, out, "CHECK")
	assert.Contains(t, out, string(preflight.CheckRPCReachable))
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "ok")
}

func TestWalletAddress(t *testing.T) {
	c := newCLI(t, 1)

	require.NoError(t, c.run("wallet:address"))
	out := c.out.String()
	assert.Contains(t, out, "Address: "+hardhatAccount0+"\n")
	assert.Contains(t, out, "Path:    "+hardhatPath+"/0\n")
	assert.NotContains(t, out, hardhatMnemonic)

	require.NoError(t, c.run("--account-index", "1", "--json", "wallet:address"))
	var got map[string]string
	require.NoError(t, json.Unmarshal(c.out.Bytes(), &got))
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", got["address"])
	assert.Equal(t, hardhatPath+"/1", got["path"])
}

func TestWalletAddress_FallbackMnemonic(t *testing.T) {
	c := newCLI(t, 1)
	delete(c.env, "MNEMONIC")
	c.env[config.FallbackMnemonicEnv] = hardhatMnemonic

	require.NoError(t, c.run("wallet:address"))
	assert.Contains(t, c.out.String(), hardhatAccount0)
}
