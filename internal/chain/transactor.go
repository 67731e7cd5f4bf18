package chain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultGasLimit is used when gas estimation fails.
const DefaultGasLimit uint64 = 10_000_000

// Signer signs transactions for one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Transactor builds, signs, submits and confirms transactions. Submissions
// through one Transactor never overlap.
type Transactor struct {
	backend     Backend
	signer      Signer
	gasLimit    uint64
	logger      *slog.Logger
	onSubmitted func(Call, common.Hash)

	mu      sync.Mutex
	chainID *big.Int
}

// TransactorOption configures a Transactor.
type TransactorOption func(*Transactor)

// WithGasLimit sets the fallback gas limit used when estimation fails.
func WithGasLimit(limit uint64) TransactorOption {
	return func(t *Transactor) {
		if limit > 0 {
			t.gasLimit = limit
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) TransactorOption {
	return func(t *Transactor) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithSubmittedHook registers fn to run after a transaction was accepted by
// the node and before waiting for its receipt.
func WithSubmittedHook(fn func(Call, common.Hash)) TransactorOption {
	return func(t *Transactor) {
		t.onSubmitted = fn
	}
}

// NewTransactor creates a Transactor for signer.
func NewTransactor(backend Backend, signer Signer, opts ...TransactorOption) *Transactor {
	t := &Transactor{
		backend:  backend,
		signer:   signer,
		gasLimit: DefaultGasLimit,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// From returns the sending address.
func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

// Submit sends data to the contract at to and waits for the receipt.
func (t *Transactor) Submit(ctx context.Context, call Call, to common.Address, data []byte) (*types.Receipt, error) {
	return t.send(ctx, call, &to, data)
}

// Deploy sends a contract-creation transaction and waits until code is
// present at the new address.
func (t *Transactor) Deploy(ctx context.Context, call Call, code []byte) (*types.Receipt, error) {
	receipt, err := t.send(ctx, call, nil, code)
	if err != nil {
		return nil, err
	}

	deployed, err := t.backend.CodeAt(ctx, receipt.ContractAddress, nil)
	if err != nil {
		return nil, &RemoteWriteError{Call: call, TxHash: receipt.TxHash, Err: fmt.Errorf("read deployed code: %w", err)}
	}
	if len(deployed) == 0 {
		return nil, &RemoteWriteError{Call: call, TxHash: receipt.TxHash, Err: fmt.Errorf("%w %s", ErrNoCode, receipt.ContractAddress.Hex())}
	}
	return receipt, nil
}

func (t *Transactor) send(ctx context.Context, call Call, to *common.Address, data []byte) (*types.Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.signer.Address()
	writeErr := func(hash common.Hash, err error) error {
		return &RemoteWriteError{Call: call, TxHash: hash, Err: err}
	}

	chainID, err := t.chainIDLocked(ctx)
	if err != nil {
		return nil, writeErr(common.Hash{}, fmt.Errorf("get chain ID: %w", err))
	}

	nonce, err := t.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, writeErr(common.Hash{}, fmt.Errorf("get nonce: %w", err))
	}

	gasPrice, err := t.gasPrice(ctx)
	if err != nil {
		return nil, writeErr(common.Hash{}, fmt.Errorf("get gas price: %w", err))
	}

	gasLimit, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       to,
		GasPrice: gasPrice,
		Value:    big.NewInt(0),
		Data:     data,
	})
	if err != nil {
		// Let the chain decide; a revert is reported from the receipt.
		gasLimit = t.gasLimit
		t.logger.Warn("gas estimation failed, using default",
			slog.String("call", call.String()),
			slog.Uint64("gas_limit", gasLimit),
			slog.String("error", err.Error()),
		)
	} else {
		gasLimit = gasLimit * 120 / 100
	}

	var tx *types.Transaction
	if to == nil {
		tx = types.NewContractCreation(nonce, big.NewInt(0), gasLimit, gasPrice, data)
	} else {
		tx = types.NewTransaction(nonce, *to, big.NewInt(0), gasLimit, gasPrice, data)
	}

	signedTx, err := t.signer.SignTx(tx, chainID)
	if err != nil {
		return nil, writeErr(common.Hash{}, fmt.Errorf("sign transaction: %w", err))
	}

	if err := t.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, writeErr(common.Hash{}, fmt.Errorf("send transaction: %w", err))
	}

	t.logger.Info("transaction submitted, waiting for confirmation",
		slog.String("call", call.String()),
		slog.String("tx_hash", signedTx.Hash().Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas_limit", gasLimit),
		slog.String("gas_price", gasPrice.String()),
	)
	if t.onSubmitted != nil {
		t.onSubmitted(call, signedTx.Hash())
	}

	receipt, err := bind.WaitMined(ctx, t.backend, signedTx)
	if err != nil {
		return nil, writeErr(signedTx.Hash(), fmt.Errorf("wait for receipt: %w", err))
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		var block uint64
		if receipt.BlockNumber != nil {
			block = receipt.BlockNumber.Uint64()
		}
		t.logger.Error("transaction reverted",
			slog.String("call", call.String()),
			slog.String("tx_hash", signedTx.Hash().Hex()),
			slog.Uint64("block_number", block),
		)
		return nil, &TransactionRevertedError{
			Call:        call,
			TxHash:      signedTx.Hash(),
			BlockNumber: block,
			GasUsed:     receipt.GasUsed,
		}
	}

	t.logger.Info("transaction confirmed",
		slog.String("call", call.String()),
		slog.String("tx_hash", signedTx.Hash().Hex()),
		slog.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

// chainIDLocked returns the cached chain ID, fetching it on first use.
func (t *Transactor) chainIDLocked(ctx context.Context) (*big.Int, error) {
	if t.chainID != nil {
		return t.chainID, nil
	}
	id, err := t.backend.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	t.chainID = id
	return id, nil
}

// gasPrice returns the suggested gas price boosted by 10%.
func (t *Transactor) gasPrice(ctx context.Context) (*big.Int, error) {
	suggested, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	boosted := new(big.Int).Mul(suggested, big.NewInt(110))
	return boosted.Div(boosted, big.NewInt(100)), nil
}
