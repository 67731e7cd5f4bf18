package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Bidon15/roundctl/internal/chain"
	"github.com/Bidon15/roundctl/internal/config"
	"github.com/Bidon15/roundctl/internal/deploy"
	"github.com/Bidon15/roundctl/internal/round"
)

var deployB3trRoundCmd = &cobra.Command{
	Use:   "deploy:b3tr-round",
	Short: "Deploy B3trRound behind an ERC1967 proxy",
	Long: `Deploy the B3trRound implementation, then an ERC1967Proxy whose
constructor calls initialize() with the dependency addresses, and read the
contract back through the proxy.

Dependency addresses default to the selected network's table; the flags
override them. Contract artifacts are read from --artifacts-dir (Hardhat or
Foundry output).

Examples:
  roundctl --network local-development deploy:b3tr-round
  roundctl --network testnet deploy:b3tr-round --output deployments/testnet.yaml`,
	Args: cobra.NoArgs,
	RunE: runDeployB3trRound,
}

var deployVerifyMockCmd = &cobra.Command{
	Use:   "deploy:verify-mock",
	Short: "Deploy the VetDomainsVerifyMock contract",
	Args:  cobra.NoArgs,
	RunE:  runDeployVerifyMock,
}

func init() {
	f := deployB3trRoundCmd.Flags()
	f.String("x-allocation-pool", "", "XAllocationPool address (default from network)")
	f.String("x-allocation-voting", "", "XAllocationVoting address (default from network)")
	f.String("x2-earn-apps", "", "X2EarnApps address (default from network)")
	f.String("emissions", "", "Emissions address (default from network)")

	for _, c := range []*cobra.Command{deployB3trRoundCmd, deployVerifyMockCmd} {
		c.Flags().String("artifacts-dir", "", "contract artifacts directory (default from config, then ./"+config.DefaultArtifactsDir+")")
		c.Flags().String("output", "", "write a YAML deployment record to this path")
		rootCmd.AddCommand(c)
	}
}

// dependencyFlags overlays the dependency flags on the network defaults.
func dependencyFlags(cmd *cobra.Command, defaults config.DependencyAddresses) config.DependencyAddresses {
	deps := defaults
	for flag, field := range map[string]*string{
		"x-allocation-pool":   &deps.XAllocationPool,
		"x-allocation-voting": &deps.XAllocationVoting,
		"x2-earn-apps":        &deps.X2EarnApps,
		"emissions":           &deps.Emissions,
	} {
		if value, _ := cmd.Flags().GetString(flag); value != "" {
			*field = value
		}
	}
	return deps
}

// deployment is the state shared by the deploy commands.
type deployment struct {
	deployer *deploy.Deployer
	backend  chain.Client
	chainID  uint64
	output   string
}

func (s *session) newDeployment(cmd *cobra.Command) (*deployment, error) {
	dir, _ := cmd.Flags().GetString("artifacts-dir")
	if dir == "" {
		dir = s.settings.ArtifactsDir
	}
	output, _ := cmd.Flags().GetString("output")

	signer, err := s.signer()
	if err != nil {
		return nil, err
	}
	backend, err := s.dial(cmd.Context(), true)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.readContext(cmd.Context())
	defer cancel()
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		return nil, &chain.RemoteReadError{Call: chain.Call{Method: "eth_chainId"}, Err: err}
	}

	return &deployment{
		deployer: deploy.NewDeployer(deploy.Config{
			Backend:      backend,
			Transactor:   s.transactor(backend, signer),
			ArtifactsDir: dir,
			Logger:       s.logger,
		}),
		backend: backend,
		chainID: chainID.Uint64(),
		output:  output,
	}, nil
}

// writeRecord writes r when --output was given.
func (s *session) writeRecord(d *deployment, r *deploy.Record) error {
	if d.output == "" {
		return nil
	}
	if err := r.WriteFile(d.output); err != nil {
		return err
	}
	s.logger.Info("deployment record written", slog.String("path", d.output))
	s.say("Deployment record written to %s\n", d.output)
	return nil
}

func runDeployB3trRound(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	deps := dependencyFlags(cmd, s.network.Dependencies)
	if err := deploy.ValidateDependencies(deps); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Network = s.network.Name
		}
		return err
	}

	s.say("Deploying B3trRound contract using proxy pattern...\n")
	s.say("Network: %s\n", s.network.Name)

	d, err := s.newDeployment(cmd)
	if err != nil {
		return err
	}
	defer d.backend.Close()

	s.say("Deploying with account: %s\n", d.deployer.From().Hex())
	s.say("Deploying implementation and proxy contracts...\n")

	ctx, cancel := deployContext(cmd.Context(), s)
	defer cancel()
	result, err := d.deployer.DeployAndInitialize(ctx, deps)
	if err != nil {
		return err
	}

	record := deploy.NewProxyRecord(s.network.Name, d.chainID, d.deployer.From().Hex(), d.deployer.Now(), result)
	if jsonOut {
		if err := s.writeRecord(d, record); err != nil {
			return err
		}
		return printJSON(s.out, map[string]interface{}{
			"network":  s.network.Name,
			"chain_id": d.chainID,
			"deployer": d.deployer.From().Hex(),
			"result":   result,
		})
	}

	s.say("Implementation deployed to: %s\n", result.Implementation.Address.Hex())
	s.say("Proxy deployed to: %s\n", result.Proxy.Address.Hex())
	s.say("B3trRound (through proxy) initialized!\n")

	verification := result.Verification
	if verification.CurrentRoundID != "" {
		s.say("Current round ID: %s\n", verification.CurrentRoundID)
	}
	if verification.PreviousRoundID != "" {
		s.say("Previous round ID: %s\n", verification.PreviousRoundID)
	}
	if verification.UnclaimedPreviousApps != nil {
		s.say("Unclaimed apps for previous round: %s\n", round.FormatBytes32Array(verification.UnclaimedPreviousApps))
	}
	for _, w := range verification.Warnings {
		s.say("%s error calling contract methods: %s\n", colorYellow(s.out, "Warning:"), w)
	}

	return s.writeRecord(d, record)
}

func runDeployVerifyMock(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	s.say("Deploying %s contract...\n", deploy.ContractVetDomainsVerifyMock)

	d, err := s.newDeployment(cmd)
	if err != nil {
		return err
	}
	defer d.backend.Close()

	ctx, cancel := deployContext(cmd.Context(), s)
	defer cancel()
	deployed, err := d.deployer.DeployPlain(ctx, deploy.ContractVetDomainsVerifyMock)
	if err != nil {
		return err
	}

	record := deploy.NewPlainRecord(s.network.Name, d.chainID, d.deployer.From().Hex(), d.deployer.Now(), deployed)
	if jsonOut {
		if err := s.writeRecord(d, record); err != nil {
			return err
		}
		return printJSON(s.out, map[string]interface{}{
			"network":  s.network.Name,
			"chain_id": d.chainID,
			"deployer": d.deployer.From().Hex(),
			"result":   deployed,
		})
	}

	s.say("%s contract deployed to %s\n", deploy.ContractVetDomainsVerifyMock, deployed.Address.Hex())
	s.say("Deployer address (with DEFAULT_ADMIN_ROLE and ADMIN_ROLE): %s\n", d.deployer.From().Hex())
	return s.writeRecord(d, record)
}

// deployContext bounds a whole deployment: two transactions plus the
// verification reads.
func deployContext(ctx context.Context, s *session) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*s.settings.ConfirmTimeout+s.settings.Timeout)
}
