package wallet

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/roundctl/internal/config"
)

const hardhatMnemonic = "test test test test test test test test test test test junk"

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    Path
		wantErr bool
	}{
		{
			name: "apostrophe hardened",
			path: "m/44'/818'/0'/0",
			want: Path{0x8000002c, 0x80000332, 0x80000000, 0},
		},
		{
			name: "h markers without prefix",
			path: "44h/60H/0h/0",
			want: Path{0x8000002c, 0x8000003c, 0x80000000, 0},
		},
		{
			name:    "empty",
			path:    "m/",
			wantErr: true,
		},
		{
			name:    "non numeric",
			path:    "m/44'/abc",
			wantErr: true,
		},
		{
			name:    "component too large",
			path:    "m/2147483648",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPath_String(t *testing.T) {
	p, err := ParsePath("m/44h/818h/0h/0")
	require.NoError(t, err)
	assert.Equal(t, "m/44'/818'/0'/0", p.String())
	assert.Equal(t, "m/44'/818'/0'/0/7", p.Child(7).String())
	assert.Equal(t, "m/44'/818'/0'/0", p.String(), "Child must not modify the receiver")
}

func TestFromMnemonic_HardhatAccounts(t *testing.T) {
	tests := []struct {
		index uint32
		want  common.Address
	}{
		{0, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")},
		{1, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")},
	}

	for _, tt := range tests {
		signer, err := FromMnemonic(hardhatMnemonic, "m/44'/60'/0'/0", tt.index)
		require.NoError(t, err)
		assert.Equal(t, tt.want, signer.Address(), "index %d", tt.index)
	}
}

func TestFromMnemonic_Errors(t *testing.T) {
	t.Run("invalid mnemonic", func(t *testing.T) {
		_, err := FromMnemonic("not a valid mnemonic phrase", "m/44'/818'/0'/0", 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, config.ErrConfiguration))
		assert.True(t, errors.Is(err, ErrInvalidMnemonic))
		assert.NotContains(t, err.Error(), "phrase")
	})

	t.Run("invalid path", func(t *testing.T) {
		_, err := FromMnemonic(hardhatMnemonic, "m/x", 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, config.ErrConfiguration))
		assert.NotContains(t, err.Error(), "junk")
	})
}

func TestSigner_SignTx(t *testing.T) {
	signer, err := FromMnemonic(hardhatMnemonic, "m/44'/60'/0'/0", 0)
	require.NoError(t, err)

	chainID := big.NewInt(100010)
	tx := types.NewTransaction(0, common.HexToAddress("0x01"), big.NewInt(0), 21000, big.NewInt(1), nil)
	signed, err := signer.SignTx(tx, chainID)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)
	assert.Zero(t, chainID.Cmp(signed.ChainId()))
	assert.NotContains(t, signer.String(), "junk")
}
