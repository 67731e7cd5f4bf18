package preflight

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/roundctl/internal/chain"
	"github.com/Bidon15/roundctl/internal/chain/chaintest"
	"github.com/Bidon15/roundctl/internal/round"
)

var (
	contract = common.HexToAddress("0x3aaeCeb6702A5D3999399437B601e8D04d70dD6E")
	signer   = common.HexToAddress("0x1234567890123456789012345678901234567890")
)

func dialTo(backend *chaintest.Backend) DialFunc {
	return func(context.Context, string) (chain.Client, error) {
		return backend, nil
	}
}

func TestNewChecker(t *testing.T) {
	checker := NewChecker(nil)
	assert.NotNil(t, checker.dial)
	assert.Equal(t, DefaultTimeout, checker.timeout)

	checker.WithTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, checker.timeout)
	checker.WithTimeout(0)
	assert.Equal(t, 5*time.Second, checker.timeout)
}

func TestChecker_Run_RequiresRPC(t *testing.T) {
	_, err := NewChecker(nil).Run(context.Background(), &Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_url is required")
}

func TestChecker_Run(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*chaintest.Backend)
		req        Request
		wantOK     bool
		wantChecks []CheckName
		wantFailed []CheckName
	}{
		{
			name: "all checks pass",
			setup: func(b *chaintest.Backend) {
				b.SetChainID(100010)
				b.SetCode(contract, []byte{0x60, 0x80})
				b.SetBalance(signer, big.NewInt(1e18))
			},
			req:        Request{ChainID: 100010, ContractAddress: contract, SignerAddress: &signer},
			wantOK:     true,
			wantChecks: []CheckName{CheckRPCReachable, CheckChainIDMatch, CheckContractCode, CheckSignerBalance},
		},
		{
			name: "chain ID not enforced and no signer",
			setup: func(b *chaintest.Backend) {
				b.SetCode(contract, []byte{0x60, 0x80})
			},
			req:        Request{ContractAddress: contract},
			wantOK:     true,
			wantChecks: []CheckName{CheckRPCReachable, CheckChainIDMatch, CheckContractCode},
		},
		{
			name: "wrong chain and no code",
			setup: func(b *chaintest.Backend) {
				b.SetChainID(1)
			},
			req:        Request{ChainID: 100010, ContractAddress: contract},
			wantChecks: []CheckName{CheckRPCReachable, CheckChainIDMatch, CheckContractCode},
			wantFailed: []CheckName{CheckChainIDMatch, CheckContractCode},
		},
		{
			name:       "zero contract address",
			req:        Request{ContractAddress: common.Address{}},
			wantChecks: []CheckName{CheckRPCReachable, CheckChainIDMatch, CheckContractCode},
			wantFailed: []CheckName{CheckContractCode},
		},
		{
			name: "empty signer balance",
			setup: func(b *chaintest.Backend) {
				b.SetCode(contract, []byte{0x60, 0x80})
			},
			req:        Request{ContractAddress: contract, SignerAddress: &signer},
			wantChecks: []CheckName{CheckRPCReachable, CheckChainIDMatch, CheckContractCode, CheckSignerBalance},
			wantFailed: []CheckName{CheckSignerBalance},
		},
		{
			name: "unreachable node stops early",
			setup: func(b *chaintest.Backend) {
				b.ChainIDErr = errors.New("connection refused")
			},
			req:        Request{ChainID: 100010, ContractAddress: contract},
			wantChecks: []CheckName{CheckRPCReachable},
			wantFailed: []CheckName{CheckRPCReachable},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := chaintest.New(round.ABI())
			if tt.setup != nil {
				tt.setup(backend)
			}
			req := tt.req
			req.RPCURL = "http://localhost:8545"

			resp, err := NewChecker(dialTo(backend)).Run(context.Background(), &req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, resp.OK)
			assert.Equal(t, tt.wantFailed, resp.Failed())

			var names []CheckName
			for _, check := range resp.Checks {
				names = append(names, check.Name)
				assert.NotEmpty(t, check.Message)
			}
			assert.Equal(t, tt.wantChecks, names)
		})
	}
}

func TestChecker_Run_DialError(t *testing.T) {
	dial := func(context.Context, string) (chain.Client, error) {
		return nil, errors.New("unsupported protocol scheme")
	}
	resp, err := NewChecker(dial).Run(context.Background(), &Request{RPCURL: "ftp://nowhere"})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	require.Len(t, resp.Checks, 1)
	assert.Contains(t, resp.Checks[0].Message, "unsupported protocol scheme")
}
