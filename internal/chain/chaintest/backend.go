// Package chaintest provides an in-memory chain.Backend for tests. Calls and
// transactions are decoded with a contract ABI and routed to handlers.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ReadFunc answers a read-only call with decoded arguments.
type ReadFunc func(args []interface{}) ([]interface{}, error)

// WriteFunc applies a transaction; returning false makes it revert.
type WriteFunc func(from common.Address, args []interface{}) bool

// DeployedCode is the runtime code stored for successfully deployed contracts.
var DeployedCode = []byte{0x60, 0x80, 0x60, 0x40}

// Backend is a fake chain.Backend.
type Backend struct {
	mu sync.Mutex

	abi    abi.ABI
	reads  map[string]ReadFunc
	writes map[string]WriteFunc

	chainID  *big.Int
	gasPrice *big.Int
	block    uint64
	nonces   map[common.Address]uint64
	balances map[common.Address]*big.Int
	code     map[common.Address][]byte
	receipts map[common.Hash]*types.Receipt

	calls       []string
	callTargets []common.Address
	sent        []*types.Transaction
	deployments [][]byte

	// Fault injection.
	CallErr     error
	ChainIDErr  error
	EstimateErr error
	SendErr     error
	FailDeploy  bool
	EmptyCode   bool
}

// New creates a fake backend decoding calldata with parsed.
func New(parsed abi.ABI) *Backend {
	return &Backend{
		abi:      parsed,
		reads:    make(map[string]ReadFunc),
		writes:   make(map[string]WriteFunc),
		chainID:  big.NewInt(1337),
		gasPrice: big.NewInt(1_000_000_000),
		block:    1,
		nonces:   make(map[common.Address]uint64),
		balances: make(map[common.Address]*big.Int),
		code:     make(map[common.Address][]byte),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

// HandleRead registers fn for the read-only method.
func (b *Backend) HandleRead(method string, fn ReadFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads[method] = fn
}

// HandleWrite registers fn for the state-changing method.
func (b *Backend) HandleWrite(method string, fn WriteFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes[method] = fn
}

// SetChainID sets the reported chain ID.
func (b *Backend) SetChainID(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainID = big.NewInt(id)
}

// SetBalance sets the balance of addr.
func (b *Backend) SetBalance(addr common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = new(big.Int).Set(wei)
}

// SetCode sets the code stored at addr.
func (b *Backend) SetCode(addr common.Address, code []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.code[addr] = code
}

// Calls returns the method names of every CallContract, in order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// CallTargets returns the address of every CallContract, in order.
func (b *Backend) CallTargets() []common.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]common.Address(nil), b.callTargets...)
}

// Sent returns every accepted transaction, in order.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// Deployments returns the creation data of every contract-creation
// transaction, in order.
func (b *Backend) Deployments() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.deployments...)
}

// Close implements chain.Client.
func (b *Backend) Close() {}

// CallContract implements chain.Backend.
func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	if b.CallErr != nil {
		err := b.CallErr
		b.mu.Unlock()
		return nil, err
	}
	method, args, err := b.decode(msg.Data)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.calls = append(b.calls, method.Name)
	if msg.To != nil {
		b.callTargets = append(b.callTargets, *msg.To)
	}
	fn, ok := b.reads[method.Name]
	b.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("execution reverted: no handler for %s", method.Name)
	}
	values, err := fn(args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(values...)
}

// CodeAt implements chain.Backend.
func (b *Backend) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.code[account], nil
}

// BalanceAt implements chain.Backend.
func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

// ChainID implements chain.Backend.
func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ChainIDErr != nil {
		return nil, b.ChainIDErr
	}
	return new(big.Int).Set(b.chainID), nil
}

// PendingNonceAt implements chain.Backend.
func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

// SuggestGasPrice implements chain.Backend.
func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.gasPrice), nil
}

// EstimateGas implements chain.Backend.
func (b *Backend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.EstimateErr != nil {
		return 0, b.EstimateErr
	}
	return 100_000, nil
}

// SendTransaction implements chain.Backend. The transaction is executed
// immediately and its receipt becomes available.
func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	if b.SendErr != nil {
		err := b.SendErr
		b.mu.Unlock()
		return err
	}

	from, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("invalid signature: %w", err)
	}
	if tx.Nonce() != b.nonces[from] {
		b.mu.Unlock()
		return fmt.Errorf("nonce too low: have %d, want %d", tx.Nonce(), b.nonces[from])
	}
	b.nonces[from]++
	b.block++
	b.sent = append(b.sent, tx)

	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(b.block),
		GasUsed:     21_000,
	}
	b.receipts[tx.Hash()] = receipt

	if tx.To() == nil {
		b.deployments = append(b.deployments, tx.Data())
		receipt.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
		if b.FailDeploy {
			receipt.Status = types.ReceiptStatusFailed
		} else if !b.EmptyCode {
			b.code[receipt.ContractAddress] = DeployedCode
		}
		b.mu.Unlock()
		return nil
	}

	method, args, err := b.decode(tx.Data())
	if err != nil {
		receipt.Status = types.ReceiptStatusFailed
		b.mu.Unlock()
		return nil
	}
	fn, ok := b.writes[method.Name]
	b.mu.Unlock()

	// Handlers run unlocked so they may consult the backend.
	if !ok || !fn(from, args) {
		b.mu.Lock()
		receipt.Status = types.ReceiptStatusFailed
		b.mu.Unlock()
	}
	return nil
}

// TransactionReceipt implements chain.Backend.
func (b *Backend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	receipt, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (b *Backend) decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("calldata too short")
	}
	method, err := b.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("unpack %s arguments: %w", method.Name, err)
	}
	return method, args, nil
}
