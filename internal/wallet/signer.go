// Package wallet derives the signing account from a BIP39 mnemonic the way
// Hardhat's HD account configuration does: basePath/index.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	"github.com/Bidon15/roundctl/internal/config"
)

// ErrInvalidMnemonic is returned when the mnemonic fails BIP39 validation.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// Signer holds one derived account key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	path    Path
}

// FromMnemonic derives the account at basePath/index. Errors never include
// the mnemonic.
func FromMnemonic(mnemonic, basePath string, index uint32) (*Signer, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, config.NewError("", "mnemonic rejected", ErrInvalidMnemonic)
	}

	base, err := ParsePath(basePath)
	if err != nil {
		return nil, config.NewError("", "derivation path rejected", err)
	}
	path := base.Child(index)

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, config.NewError("", "mnemonic rejected", ErrInvalidMnemonic)
	}

	// The network params only select extended key version bytes, which are
	// never serialized here.
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	for _, component := range path {
		key, err = key.Derive(component)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", path, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("get private key: %w", err)
	}
	return FromKey(priv.ToECDSA(), path), nil
}

// FromKey wraps an existing private key.
func FromKey(key *ecdsa.PrivateKey, path Path) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		path:    path,
	}
}

// Address returns the account address.
func (s *Signer) Address() common.Address {
	return s.address
}

// Path returns the derivation path of the key, or nil for imported keys.
func (s *Signer) Path() Path {
	return s.path
}

// SignTx signs tx with the latest signer for chainID.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

// String never includes key material.
func (s *Signer) String() string {
	return fmt.Sprintf("Signer(%s)", s.address.Hex())
}
