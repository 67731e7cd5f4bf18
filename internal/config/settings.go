package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment overrides (ROUNDCTL_NETWORK, ...).
	EnvPrefix = "ROUNDCTL"
	// FallbackMnemonicEnv is consulted when the network's own variable is empty.
	FallbackMnemonicEnv = "ROUNDCTL_MNEMONIC"

	// DefaultDerivationPath matches the Hardhat account configuration; the
	// account index is appended as the last path element.
	DefaultDerivationPath = "m/44'/818'/0'/0"
	DefaultGasLimit       = 10_000_000
	DefaultTimeout        = 30 * time.Second
	DefaultConfirmTimeout = 5 * time.Minute
	DefaultArtifactsDir   = "artifacts"

	// MaxAccountIndex mirrors Hardhat's "count: 20" account window.
	MaxAccountIndex = 19
)

// Viper keys.
const (
	KeyNetwork        = "network"
	KeyRPCURL         = "rpc_url"
	KeyDerivationPath = "derivation_path"
	KeyAccountIndex   = "account_index"
	KeyGasLimit       = "gas_limit"
	KeyTimeout        = "timeout"
	KeyConfirmTimeout = "confirm_timeout"
	KeyArtifactsDir   = "artifacts_dir"
)

// Settings is the resolved CLI configuration for one invocation.
type Settings struct {
	Network        string        `validate:"required"`
	RPCURL         string        `validate:"omitempty,url"`
	DerivationPath string        `validate:"required"`
	AccountIndex   uint32        `validate:"lte=19"`
	GasLimit       uint64        `validate:"gt=0"`
	Timeout        time.Duration `validate:"gt=0"`
	ConfirmTimeout time.Duration `validate:"gt=0"`
	ArtifactsDir   string        `validate:"required"`

	// networkRPC holds networks.<name>.rpc_url entries from the config file.
	networkRPC map[string]string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	return validate
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyNetwork, DefaultNetwork)
	v.SetDefault(KeyDerivationPath, DefaultDerivationPath)
	v.SetDefault(KeyAccountIndex, 0)
	v.SetDefault(KeyGasLimit, DefaultGasLimit)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyConfirmTimeout, DefaultConfirmTimeout)
	v.SetDefault(KeyArtifactsDir, DefaultArtifactsDir)
}

// Load resolves Settings from v (flags, env, config file and defaults, in the
// precedence viper already applies).
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Network:        strings.TrimSpace(v.GetString(KeyNetwork)),
		RPCURL:         strings.TrimSpace(v.GetString(KeyRPCURL)),
		DerivationPath: v.GetString(KeyDerivationPath),
		AccountIndex:   v.GetUint32(KeyAccountIndex),
		GasLimit:       v.GetUint64(KeyGasLimit),
		Timeout:        v.GetDuration(KeyTimeout),
		ConfirmTimeout: v.GetDuration(KeyConfirmTimeout),
		ArtifactsDir:   v.GetString(KeyArtifactsDir),
		networkRPC:     make(map[string]string),
	}

	for name := range v.GetStringMap("networks") {
		if url := v.GetString("networks." + name + "." + KeyRPCURL); url != "" {
			s.networkRPC[name] = url
		}
	}

	if err := validate.Struct(s); err != nil {
		return nil, NewError(s.Network, "invalid settings", DescribeValidation(err))
	}
	return s, nil
}

// Endpoint returns the RPC URL for network. An explicit rpc_url wins over a
// per-network entry, which wins over the built-in default.
func (s *Settings) Endpoint(network Network) (string, error) {
	switch {
	case s.RPCURL != "":
		return s.RPCURL, nil
	case s.networkRPC[network.Name] != "":
		return s.networkRPC[network.Name], nil
	case network.RPCURL != "":
		return network.RPCURL, nil
	}
	return "", NewError(network.Name,
		fmt.Sprintf("no RPC endpoint configured for network: %s (set --rpc-url, %s_RPC_URL or networks.%s.rpc_url)",
			network.Name, EnvPrefix, network.Name), nil)
}

// Mnemonic returns the signer mnemonic for network. lookup defaults to
// os.LookupEnv.
func (s *Settings) Mnemonic(network Network, lookup func(string) (string, bool)) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range []string{network.MnemonicEnv, FallbackMnemonicEnv} {
		if name == "" {
			continue
		}
		if value, ok := lookup(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), nil
		}
	}
	return "", NewError(network.Name,
		fmt.Sprintf("no mnemonic configured for network %s (set %s or %s)",
			network.Name, network.MnemonicEnv, FallbackMnemonicEnv), nil)
}

// DescribeValidation flattens validator errors into one readable error.
func DescribeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(parts, "; "))
}
