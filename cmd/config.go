package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Bidon15/roundctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `Commands for managing the roundctl configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a configuration file at ~/.roundctl.yaml (or --config) from the
current flags and defaults. The mnemonic is never written; set it in the
environment instead.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// configFile is the on-disk layout written by config init.
type configFile struct {
	Network        string                       `yaml:"network"`
	RPCURL         string                       `yaml:"rpc_url,omitempty"`
	DerivationPath string                       `yaml:"derivation_path"`
	AccountIndex   uint32                       `yaml:"account_index"`
	GasLimit       uint64                       `yaml:"gas_limit"`
	Timeout        string                       `yaml:"timeout"`
	ConfirmTimeout string                       `yaml:"confirm_timeout"`
	ArtifactsDir   string                       `yaml:"artifacts_dir"`
	Networks       map[string]configFileNetwork `yaml:"networks,omitempty"`
}

type configFileNetwork struct {
	RPCURL string `yaml:"rpc_url"`
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFilePath()
	out := cmd.OutOrStdout()

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	settings, err := config.Load(v)
	if err != nil {
		return err
	}
	if _, err := networks.Lookup(settings.Network); err != nil {
		return err
	}

	file := configFile{
		Network:        settings.Network,
		RPCURL:         settings.RPCURL,
		DerivationPath: settings.DerivationPath,
		AccountIndex:   settings.AccountIndex,
		GasLimit:       settings.GasLimit,
		Timeout:        settings.Timeout.String(),
		ConfirmTimeout: settings.ConfirmTimeout.String(),
		ArtifactsDir:   settings.ArtifactsDir,
	}
	if settings.RPCURL == "" {
		file.Networks = make(map[string]configFileNetwork)
		for _, name := range networks.Names() {
			network, _ := networks.Lookup(name)
			if network.RPCURL != "" {
				file.Networks[name] = configFileNetwork{RPCURL: network.RPCURL}
			}
		}
	}

	body, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	content := append([]byte("# roundctl configuration\n# The signer mnemonic is read from the environment only.\n"), body...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if jsonOut {
		return printJSON(out, map[string]interface{}{"config_file": configPath})
	}
	_, _ = fmt.Fprintf(out, "%s Config file created at %s\n", colorGreen(out, "✓"), configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	rpcURL, endpointErr := s.settings.Endpoint(s.network)
	_, mnemonicErr := s.settings.Mnemonic(s.network, lookupEnv)
	mnemonicSet := mnemonicErr == nil

	if jsonOut {
		return printJSON(s.out, map[string]interface{}{
			"network":            s.network.Name,
			"contract":           s.network.ContractAddress.Hex(),
			"rpc_url":            rpcURL,
			"derivation_path":    s.settings.DerivationPath,
			"account_index":      s.settings.AccountIndex,
			"gas_limit":          s.settings.GasLimit,
			"timeout":            s.settings.Timeout.String(),
			"confirm_timeout":    s.settings.ConfirmTimeout.String(),
			"artifacts_dir":      s.settings.ArtifactsDir,
			"mnemonic_env":       s.network.MnemonicEnv,
			"mnemonic_set":       mnemonicSet,
			"config_file":        v.ConfigFileUsed(),
			"available_networks": networks.Names(),
		})
	}

	notSet := colorYellow(s.out, "(not set)")
	w := newTable(s.out)
	row := func(k, val string) { _, _ = fmt.Fprintf(w, "%s\t%s\n", k, val) }

	row("Network:", s.network.Name)
	row("Contract:", s.network.ContractAddress.Hex())
	if endpointErr != nil {
		row("RPC URL:", notSet)
	} else {
		row("RPC URL:", rpcURL)
	}
	row("Derivation Path:", s.settings.DerivationPath)
	row("Account Index:", fmt.Sprint(s.settings.AccountIndex))
	row("Gas Limit:", fmt.Sprint(s.settings.GasLimit))
	row("Timeout:", s.settings.Timeout.String())
	row("Confirm Timeout:", s.settings.ConfirmTimeout.String())
	row("Artifacts Dir:", s.settings.ArtifactsDir)
	if mnemonicSet {
		row("Mnemonic:", "set ("+s.network.MnemonicEnv+" or "+config.FallbackMnemonicEnv+")")
	} else {
		row("Mnemonic:", notSet)
	}
	if file := v.ConfigFileUsed(); file != "" {
		row("Config File:", file)
	}
	return w.Flush()
}
