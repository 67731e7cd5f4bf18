// Package config holds the network table and the CLI settings for roundctl.
package config

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Recognized network names.
const (
	NetworkMainnet          = "mainnet"
	NetworkTestnet          = "testnet"
	NetworkLocalDevelopment = "local-development"
)

// DefaultNetwork is used when no network is selected.
const DefaultNetwork = NetworkLocalDevelopment

// DependencyAddresses are the contracts B3trRound is initialized with.
// Values are hex strings so they can be fed straight from flags and validated.
type DependencyAddresses struct {
	XAllocationPool   string `json:"x_allocation_pool" yaml:"x_allocation_pool" validate:"required,eth_addr"`
	XAllocationVoting string `json:"x_allocation_voting" yaml:"x_allocation_voting" validate:"required,eth_addr"`
	X2EarnApps        string `json:"x2_earn_apps" yaml:"x2_earn_apps" validate:"required,eth_addr"`
	Emissions         string `json:"emissions" yaml:"emissions" validate:"required,eth_addr"`
}

// Network describes one deployment target.
type Network struct {
	Name            string
	ContractAddress common.Address
	// RPCURL is the default JSON-RPC endpoint; empty means it must be configured.
	RPCURL string
	// ChainID is the expected chain ID; 0 disables the check.
	ChainID uint64
	// MnemonicEnv names the environment variable holding the signer mnemonic.
	MnemonicEnv  string
	Dependencies DependencyAddresses
}

// Networks is an immutable name -> Network table.
type Networks struct {
	byName map[string]Network
}

// NewNetworks builds a table from the given entries. Later entries with the
// same name replace earlier ones.
func NewNetworks(entries ...Network) Networks {
	byName := make(map[string]Network, len(entries))
	for _, n := range entries {
		byName[n.Name] = n
	}
	return Networks{byName: byName}
}

// DefaultNetworks returns the built-in table for mainnet, testnet and the
// local development network.
func DefaultNetworks() Networks {
	return NewNetworks(
		Network{
			Name:            NetworkMainnet,
			ContractAddress: common.HexToAddress("0x0000000000000000000000000000000000000000"),
			MnemonicEnv:     "MAINNET_MNEMONIC",
			Dependencies: DependencyAddresses{
				XAllocationPool:   "0x6Bee7DDab6c99d5B2Af0554EaEA484CE18F52631",
				XAllocationVoting: "0x89A00Bb0947a30FF95BEeF77a66AEdE3842Fe5B7",
				X2EarnApps:        "0x8392B7CCc763dB03b47afcD8E8f5e24F9cf0554D",
				Emissions:         "0xDf94739bd169C84fe6478D8420Bb807F1f47b135",
			},
		},
		Network{
			Name:            NetworkTestnet,
			ContractAddress: common.HexToAddress("0x3aaeCeb6702A5D3999399437B601e8D04d70dD6E"),
			ChainID:         100010,
			MnemonicEnv:     "TESTNET_MNEMONIC",
			Dependencies: DependencyAddresses{
				XAllocationPool:   "0x6f7b4bc19b4dc99005b473b9c45ce2815bbe7533",
				XAllocationVoting: "0x8800592c463f0b21ae08732559ee8e146db1d7b2",
				X2EarnApps:        "0x0b54a094b877a25bdc95b4431eaa1e2206b1ddfe",
				Emissions:         "0x66898f98409db20ed6a1bf0021334b7897eb0688",
			},
		},
		Network{
			Name:            NetworkLocalDevelopment,
			ContractAddress: common.HexToAddress("0xe32f25c825b8515ade62541cf6cc195c0e211855"),
			RPCURL:          "http://localhost:8545",
			MnemonicEnv:     "MNEMONIC",
			Dependencies: DependencyAddresses{
				XAllocationPool:   "0x1a98db0a37b040c00be156ef2fc81983f65a7fbc",
				XAllocationVoting: "0xe5b2794c12432459d1a2739d7020e75a54caa930",
				X2EarnApps:        "0x5a08024dccf4bd6a77a22e9fad2e7da3c307b01e",
				Emissions:         "0x475936657ed1c6da36880218662fd6feb362fe3c",
			},
		},
	)
}

// Lookup returns the network registered under name.
func (n Networks) Lookup(name string) (Network, error) {
	network, ok := n.byName[name]
	if !ok {
		return Network{}, &ConfigurationError{
			Network: name,
			Reason:  "no contract address configured for network: " + name,
		}
	}
	return network, nil
}

// ContractAddress returns the B3trRound address configured for name.
func (n Networks) ContractAddress(name string) (common.Address, error) {
	network, err := n.Lookup(name)
	if err != nil {
		return common.Address{}, err
	}
	return network.ContractAddress, nil
}

// Names returns the registered network names in sorted order.
func (n Networks) Names() []string {
	names := make([]string, 0, len(n.byName))
	for name := range n.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String lists the network names, for flag help text.
func (n Networks) String() string {
	return strings.Join(n.Names(), ", ")
}
