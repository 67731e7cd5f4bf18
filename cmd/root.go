package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Bidon15/roundctl/internal/chain"
	"github.com/Bidon15/roundctl/internal/config"
	"github.com/Bidon15/roundctl/internal/round"
	"github.com/Bidon15/roundctl/internal/wallet"
)

// Version information, set via ldflags during build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Global flags
var (
	cfgFile string
	jsonOut bool
	verbose bool
)

var (
	// v holds the resolved configuration of one invocation.
	v = viper.New()

	// networks is the contract address table every command binds against.
	networks = config.DefaultNetworks()

	// dialBackend and lookupEnv are replaced in tests.
	dialBackend = func(ctx context.Context, rpcURL string) (chain.Client, error) {
		return chain.Dial(ctx, rpcURL)
	}
	lookupEnv = os.LookupEnv

	// configLoadErr is a config file that exists but could not be read.
	configLoadErr error
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "roundctl",
	Short: "roundctl - operate the B3trRound allocation contract",
	Long: `roundctl reads round and X-App allocation state from the B3trRound
contract, submits claim and start-round transactions, and deploys the
contract behind an ERC1967 proxy.

Configuration (in order of priority):
  1. Command-line flags (--network, --rpc-url, ...)
  2. Environment variables (ROUNDCTL_NETWORK, ROUNDCTL_RPC_URL, ...)
  3. Config file (~/.roundctl.yaml)

The signer mnemonic is only read from the environment: MNEMONIC
(local-development), TESTNET_MNEMONIC, MAINNET_MNEMONIC or ROUNDCTL_MNEMONIC.

Get started:
  $ roundctl round:current
  $ roundctl apps:unclaimed-with-amounts --round-id 3
  $ roundctl --network testnet claim:previous-round`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "roundctl %s\n", Version)
		if verbose {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", Commit)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", BuildDate)
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ~/.roundctl.yaml)")
	flags.String("network", "", "network: "+networks.String()+" (or ROUNDCTL_NETWORK)")
	flags.String("rpc-url", "", "Ethereum JSON-RPC endpoint (or ROUNDCTL_RPC_URL)")
	flags.Duration("timeout", config.DefaultTimeout, "timeout for each read")
	flags.Duration("confirm-timeout", config.DefaultConfirmTimeout, "timeout for a transaction including confirmation")
	flags.Uint32("account-index", 0, "signer account index below the derivation path")
	flags.Uint64("gas-limit", config.DefaultGasLimit, "gas limit used when estimation fails")
	flags.BoolVar(&jsonOut, "json", false, "output in JSON format")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"network":         config.KeyNetwork,
	"rpc-url":         config.KeyRPCURL,
	"timeout":         config.KeyTimeout,
	"confirm-timeout": config.KeyConfirmTimeout,
	"account-index":   config.KeyAccountIndex,
	"gas-limit":       config.KeyGasLimit,
}

// initConfig initializes viper configuration.
func initConfig() {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
			v.SetConfigType("yaml")
			v.SetConfigName(".roundctl")
		}
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		_ = v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name))
	}

	configLoadErr = nil
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configLoadErr = err
		}
	}
}

// Execute runs the root command. Ctrl-C cancels in-flight calls.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logFailure(rootCmd.ErrOrStderr(), err)
		printError(rootCmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// logFailure logs the error that ended the command. Write failures are
// logged at error level.
func logFailure(w io.Writer, err error) {
	level := slog.LevelDebug
	if errors.Is(err, chain.ErrRemoteWrite) {
		level = slog.LevelError
	}
	newLogger(w).Log(context.Background(), level, "command failed", slog.String("error", err.Error()))
}

// ExecuteWithArgs runs the root command with the provided arguments (for testing)
func ExecuteWithArgs(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

// SetOutput sets the output writer for the root command (for testing)
func SetOutput(w io.Writer) {
	rootCmd.SetOut(w)
	rootCmd.SetErr(w)
}

// ResetFlags resets all flags and configuration to their defaults (for testing)
func ResetFlags() {
	cfgFile = ""
	jsonOut = false
	verbose = false
	v = viper.New()
	configLoadErr = nil

	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.PersistentFlags(), c.Flags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)
}

// session is the per-invocation state shared by commands.
type session struct {
	settings *config.Settings
	network  config.Network
	command  string
	logger   *slog.Logger
	out      io.Writer
}

// newSession resolves settings and the network, and sets up logging.
func newSession(cmd *cobra.Command) (*session, error) {
	if configLoadErr != nil {
		return nil, config.NewError("", "read config file", configLoadErr)
	}
	settings, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	network, err := networks.Lookup(settings.Network)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cmd.ErrOrStderr()).With(
		slog.String("run_id", uuid.NewString()),
		slog.String("network", network.Name),
		slog.String("command", cmd.Name()),
	)
	return &session{
		settings: settings,
		network:  network,
		command:  cmd.Name(),
		logger:   logger,
		out:      cmd.OutOrStdout(),
	}, nil
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// readContext bounds one read.
func (s *session) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.settings.Timeout)
}

// writeContext bounds one transaction including its confirmation.
func (s *session) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.settings.ConfirmTimeout)
}

// dial connects to the network's RPC endpoint. A failed connection is a
// remote write error when the command submits transactions, else a remote
// read error.
func (s *session) dial(ctx context.Context, write bool) (chain.Client, error) {
	url, err := s.settings.Endpoint(s.network)
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := s.readContext(ctx)
	defer cancel()

	s.logger.Debug("connecting", slog.String("rpc_url", url))
	backend, err := dialBackend(dialCtx, url)
	if err != nil {
		call := chain.Call{Method: s.command}
		err = fmt.Errorf("connect to %s RPC: %w", s.network.Name, err)
		if write {
			return nil, &chain.RemoteWriteError{Call: call, Err: err}
		}
		return nil, &chain.RemoteReadError{Call: call, Err: err}
	}
	return backend, nil
}

// signer derives the signing account. The mnemonic is read once and never
// logged.
func (s *session) signer() (*wallet.Signer, error) {
	mnemonic, err := s.settings.Mnemonic(s.network, lookupEnv)
	if err != nil {
		return nil, err
	}
	signer, err := wallet.FromMnemonic(mnemonic, s.settings.DerivationPath, s.settings.AccountIndex)
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Network = s.network.Name
		}
		return nil, err
	}
	s.logger.Debug("signer derived",
		slog.String("address", signer.Address().Hex()),
		slog.String("path", signer.Path().String()),
	)
	return signer, nil
}

// transactor builds a Transactor that narrates submitted hashes.
func (s *session) transactor(backend chain.Backend, signer chain.Signer) *chain.Transactor {
	return chain.NewTransactor(backend, signer,
		chain.WithGasLimit(s.settings.GasLimit),
		chain.WithLogger(s.logger),
		chain.WithSubmittedHook(func(_ chain.Call, hash common.Hash) {
			s.say("Transaction hash: %s\n", hash.Hex())
		}),
	)
}

// roundClient resolves the contract and connects. With sign set, the client
// can submit transactions. The caller closes the returned backend.
func (s *session) roundClient(ctx context.Context, sign bool) (*round.Client, chain.Client, error) {
	var opts []round.Option
	var signer *wallet.Signer
	if sign {
		var err error
		if signer, err = s.signer(); err != nil {
			return nil, nil, err
		}
	}

	address, err := networks.ContractAddress(s.network.Name)
	if err != nil {
		return nil, nil, err
	}
	if address == (common.Address{}) {
		return nil, nil, config.NewError(s.network.Name,
			"no contract address configured for network: "+s.network.Name+" (zero address)", nil)
	}

	s.say("Network: %s\n", s.network.Name)
	s.say("Using contract address: %s\n", address.Hex())

	backend, err := s.dial(ctx, sign)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, round.WithLogger(s.logger))
	if signer != nil {
		opts = append(opts, round.WithTransactor(s.transactor(backend, signer)))
	}

	client, err := round.New(backend, address, opts...)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return client, backend, nil
}

// say writes human narration; it is suppressed in JSON mode.
func (s *session) say(format string, args ...interface{}) {
	if jsonOut {
		return
	}
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// configFilePath returns the config file path in use or the default one.
func configFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".roundctl.yaml"
	}
	return filepath.Join(home, ".roundctl.yaml")
}
