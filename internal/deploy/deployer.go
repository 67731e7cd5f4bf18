package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/roundctl/internal/chain"
	"github.com/Bidon15/roundctl/internal/config"
	"github.com/Bidon15/roundctl/internal/round"
)

// erc1967ProxyABI is the OpenZeppelin ERC1967Proxy constructor, used when the
// proxy artifact carries no constructor definition.
const erc1967ProxyABI = `[{"type":"constructor","stateMutability":"payable","inputs":[{"name":"implementation","type":"address"},{"name":"_data","type":"bytes"}]}]`

// DependencyAddresses are the initialize() parameters of B3trRound.
type DependencyAddresses = config.DependencyAddresses

// Deployer deploys contracts from an artifacts directory.
type Deployer struct {
	backend      chain.Backend
	transactor   *chain.Transactor
	artifactsDir string
	logger       *slog.Logger
	now          func() time.Time
}

// Config contains configuration for the Deployer.
type Config struct {
	Backend      chain.Backend
	Transactor   *chain.Transactor
	ArtifactsDir string
	Logger       *slog.Logger
}

// NewDeployer creates a Deployer.
func NewDeployer(cfg Config) *Deployer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := cfg.ArtifactsDir
	if dir == "" {
		dir = config.DefaultArtifactsDir
	}
	return &Deployer{
		backend:      cfg.Backend,
		transactor:   cfg.Transactor,
		artifactsDir: dir,
		logger:       logger,
		now:          time.Now,
	}
}

// Deployment is one deployed contract.
type Deployment struct {
	Contract string         `json:"contract" yaml:"contract"`
	Address  common.Address `json:"address" yaml:"address"`
	TxHash   common.Hash    `json:"tx_hash" yaml:"tx_hash"`
	Block    uint64         `json:"block" yaml:"block"`
	GasUsed  uint64         `json:"gas_used" yaml:"gas_used"`
}

// Verification holds the post-deployment reads through the proxy. Warnings
// list the reads that failed.
type Verification struct {
	CurrentRoundID        string        `json:"current_round_id,omitempty" yaml:"current_round_id,omitempty"`
	PreviousRoundID       string        `json:"previous_round_id,omitempty" yaml:"previous_round_id,omitempty"`
	UnclaimedPreviousApps []common.Hash `json:"unclaimed_previous_apps" yaml:"unclaimed_previous_apps"`
	Warnings              []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// OK reports whether every verification read succeeded.
func (v *Verification) OK() bool {
	return len(v.Warnings) == 0
}

// ProxyResult is the outcome of DeployAndInitialize.
type ProxyResult struct {
	Implementation Deployment          `json:"implementation"`
	Proxy          Deployment          `json:"proxy"`
	Dependencies   DependencyAddresses `json:"dependencies"`
	Verification   Verification        `json:"verification"`
}

// ValidateDependencies checks that every dependency is a well-formed address.
func ValidateDependencies(deps DependencyAddresses) error {
	if err := config.Validator().Struct(deps); err != nil {
		return config.NewError("", "invalid dependency addresses", config.DescribeValidation(err))
	}
	return nil
}

// DeployAndInitialize deploys the B3trRound implementation and an
// ERC1967Proxy whose constructor calls initialize(deps), then reads the
// contract back through the proxy. Failed verification reads are logged and
// reported but do not fail the deployment.
func (d *Deployer) DeployAndInitialize(ctx context.Context, deps DependencyAddresses) (*ProxyResult, error) {
	if err := ValidateDependencies(deps); err != nil {
		return nil, err
	}

	implArtifact, err := LoadArtifact(d.artifactsDir, ContractB3trRound)
	if err != nil {
		return nil, err
	}
	proxyArtifact, err := LoadArtifact(d.artifactsDir, ContractERC1967Proxy)
	if err != nil {
		return nil, err
	}
	proxyABI, err := constructorABI(proxyArtifact)
	if err != nil {
		return nil, err
	}

	d.logger.Info("deploying implementation contract",
		slog.String("contract", ContractB3trRound),
		slog.String("deployer", d.transactor.From().Hex()),
	)
	impl, err := d.deploy(ctx, ContractB3trRound, implArtifact, nil)
	if err != nil {
		return nil, fmt.Errorf("deploy implementation: %w", err)
	}
	d.logger.Info("implementation deployed", slog.String("address", impl.Address.Hex()))

	initData, err := round.ABI().Pack(round.MethodInitialize,
		common.HexToAddress(deps.XAllocationPool),
		common.HexToAddress(deps.XAllocationVoting),
		common.HexToAddress(deps.X2EarnApps),
		common.HexToAddress(deps.Emissions),
	)
	if err != nil {
		return nil, fmt.Errorf("encode initialize: %w", err)
	}
	ctorArgs, err := proxyABI.Pack("", impl.Address, initData)
	if err != nil {
		return nil, fmt.Errorf("encode proxy constructor: %w", err)
	}

	d.logger.Info("deploying proxy contract",
		slog.String("contract", ContractERC1967Proxy),
		slog.String("implementation", impl.Address.Hex()),
	)
	proxy, err := d.deploy(ctx, ContractERC1967Proxy, proxyArtifact, ctorArgs)
	if err != nil {
		return nil, fmt.Errorf("deploy proxy: %w", err)
	}
	d.logger.Info("proxy deployed", slog.String("address", proxy.Address.Hex()))

	return &ProxyResult{
		Implementation: *impl,
		Proxy:          *proxy,
		Dependencies:   deps,
		Verification:   d.verify(ctx, proxy.Address),
	}, nil
}

// DeployPlain deploys the named contract with no constructor arguments.
func (d *Deployer) DeployPlain(ctx context.Context, name string) (*Deployment, error) {
	artifact, err := LoadArtifact(d.artifactsDir, name)
	if err != nil {
		return nil, err
	}

	d.logger.Info("deploying contract",
		slog.String("contract", name),
		slog.String("deployer", d.transactor.From().Hex()),
	)
	deployment, err := d.deploy(ctx, name, artifact, nil)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}
	d.logger.Info("contract deployed",
		slog.String("contract", name),
		slog.String("address", deployment.Address.Hex()),
	)
	return deployment, nil
}

// From returns the deploying account.
func (d *Deployer) From() common.Address {
	return d.transactor.From()
}

// Now returns the deployer's clock reading, for deployment records.
func (d *Deployer) Now() time.Time {
	return d.now()
}

func (d *Deployer) deploy(ctx context.Context, name string, artifact *Artifact, ctorArgs []byte) (*Deployment, error) {
	code, err := artifact.Bytes()
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, len(code)+len(ctorArgs))
	data = append(data, code...)
	data = append(data, ctorArgs...)

	receipt, err := d.transactor.Deploy(ctx, chain.Call{Method: "deploy " + name}, data)
	if err != nil {
		return nil, err
	}

	deployment := &Deployment{
		Contract: name,
		Address:  receipt.ContractAddress,
		TxHash:   receipt.TxHash,
		GasUsed:  receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		deployment.Block = receipt.BlockNumber.Uint64()
	}
	return deployment, nil
}

func (d *Deployer) verify(ctx context.Context, proxy common.Address) Verification {
	var v Verification
	warn := func(what string, err error) {
		d.logger.Warn("verification read failed",
			slog.String("read", what),
			slog.String("proxy", proxy.Hex()),
			slog.String("error", err.Error()),
		)
		v.Warnings = append(v.Warnings, fmt.Sprintf("%s: %v", what, err))
	}

	client, err := round.New(d.backend, proxy, round.WithLogger(d.logger))
	if err != nil {
		warn("bind proxy", err)
		return v
	}

	if id, err := client.CurrentRoundID(ctx); err != nil {
		warn("current round", err)
	} else {
		v.CurrentRoundID = id.String()
	}
	if id, err := client.PreviousRoundID(ctx); err != nil {
		warn("previous round", err)
	} else {
		v.PreviousRoundID = id.String()
	}
	if apps, err := client.UnclaimedAppsForPreviousRound(ctx); err != nil {
		warn("unclaimed apps for previous round", err)
	} else {
		v.UnclaimedPreviousApps = apps
	}
	return v
}

func constructorABI(artifact *Artifact) (abi.ABI, error) {
	if len(artifact.ABI) > 0 {
		parsed, err := artifact.ParsedABI()
		if err != nil {
			return abi.ABI{}, err
		}
		if len(parsed.Constructor.Inputs) == 2 {
			return parsed, nil
		}
	}
	return chain.ParseABI(erc1967ProxyABI)
}
