// Package round is the client for the B3trRound contract: round IDs, X-App
// allocation queries and the claim / start-round transactions.
package round

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/Bidon15/roundctl/internal/chain"
	"github.com/Bidon15/roundctl/internal/config"
)

// Client wraps one deployed B3trRound contract. It holds no state besides the
// binding; every method is a direct remote call.
type Client struct {
	contract   *chain.Contract
	transactor *chain.Transactor
	logger     *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithTransactor enables state-changing calls.
func WithTransactor(t *chain.Transactor) Option {
	return func(c *Client) {
		c.transactor = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New binds a client to the contract at address.
func New(backend chain.Backend, address common.Address, opts ...Option) (*Client, error) {
	if address == (common.Address{}) {
		return nil, config.NewError("", "contract address is the zero address", nil)
	}

	c := &Client{
		contract: chain.NewContract(address, parsedABI, backend),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewForNetwork resolves the contract address for network from networks and
// binds a client to it. Resolution fails before any remote call is made.
func NewForNetwork(networks config.Networks, network string, backend chain.Backend, opts ...Option) (*Client, error) {
	address, err := networks.ContractAddress(network)
	if err != nil {
		return nil, err
	}
	if address == (common.Address{}) {
		return nil, config.NewError(network, "no contract address configured for network: "+network+" (zero address)", nil)
	}
	return New(backend, address, opts...)
}

// Address returns the bound contract address.
func (c *Client) Address() common.Address {
	return c.contract.Address()
}

// CurrentRoundID returns the current round.
func (c *Client) CurrentRoundID(ctx context.Context) (*big.Int, error) {
	return c.readUint(ctx, chain.Call{Method: MethodGetCurrentRoundID})
}

// PreviousRoundID returns the previous round, or NoRound if there is none yet.
func (c *Client) PreviousRoundID(ctx context.Context) (*big.Int, error) {
	return c.readUint(ctx, chain.Call{Method: MethodGetPreviousRoundID})
}

// AllAppsForRound returns every X-App registered for roundID, in contract order.
func (c *Client) AllAppsForRound(ctx context.Context, roundID *big.Int) ([]common.Hash, error) {
	return c.readAppsForRound(ctx, MethodGetAllXAppsForRound, roundID)
}

// UnclaimedAppsForRound returns the X-Apps that have not claimed for roundID.
func (c *Client) UnclaimedAppsForRound(ctx context.Context, roundID *big.Int) ([]common.Hash, error) {
	return c.readAppsForRound(ctx, MethodGetUnclaimedXAppsForRound, roundID)
}

// UnclaimedAppsWithNonZeroAmounts returns the unclaimed X-Apps of roundID
// whose allocation is non-zero. Filtering happens in the contract.
func (c *Client) UnclaimedAppsWithNonZeroAmounts(ctx context.Context, roundID *big.Int) ([]common.Hash, error) {
	return c.readAppsForRound(ctx, MethodGetUnclaimedXAppsWithNonZeroAmounts, roundID)
}

// UnclaimedAppsForPreviousRound returns the unclaimed X-Apps of the previous round.
func (c *Client) UnclaimedAppsForPreviousRound(ctx context.Context) ([]common.Hash, error) {
	call := chain.Call{Method: MethodGetUnclaimedXAppsForPreviousRound}
	out, err := c.read(ctx, call)
	if err != nil {
		return nil, err
	}
	return c.hashes(call, out, 0)
}

// UnclaimedAllocations pairs unclaimed X-Apps with their claimable amounts.
// AppIDs[i] can claim Amounts[i] (wei, 18 decimals).
type UnclaimedAllocations struct {
	AppIDs  []common.Hash `json:"app_ids"`
	Amounts []*big.Int    `json:"amounts"`
}

// Len returns the number of entries.
func (u *UnclaimedAllocations) Len() int {
	return len(u.AppIDs)
}

// UnclaimedAppsWithAmounts returns the unclaimed X-Apps of roundID and their
// amounts. The two sequences are guaranteed to have equal length.
func (c *Client) UnclaimedAppsWithAmounts(ctx context.Context, roundID *big.Int) (*UnclaimedAllocations, error) {
	if err := checkRoundID(roundID); err != nil {
		return nil, err
	}
	call := chain.Call{Method: MethodGetUnclaimedXAppsWithAmounts, Round: roundID.String()}
	out, err := c.read(ctx, call, roundID)
	if err != nil {
		return nil, err
	}

	appIDs, err := c.hashes(call, out, 0)
	if err != nil {
		return nil, err
	}
	if len(out) < 2 {
		return nil, c.outputErr(call, fmt.Errorf("expected 2 outputs, got %d", len(out)))
	}
	amounts, ok := out[1].([]*big.Int)
	if !ok {
		return nil, c.outputErr(call, fmt.Errorf("unexpected amounts type %T", out[1]))
	}
	if len(appIDs) != len(amounts) {
		return nil, c.outputErr(call, fmt.Errorf("length mismatch: %d app IDs, %d amounts", len(appIDs), len(amounts)))
	}

	return &UnclaimedAllocations{AppIDs: appIDs, Amounts: amounts}, nil
}

// HasAppClaimed reports whether appID has claimed its allocation for roundID.
func (c *Client) HasAppClaimed(ctx context.Context, roundID *big.Int, appID common.Hash) (bool, error) {
	if err := checkRoundID(roundID); err != nil {
		return false, err
	}
	call := chain.Call{Method: MethodHasXAppClaimed, Round: roundID.String(), App: appID.Hex()}
	out, err := c.read(ctx, call, roundID, [32]byte(appID))
	if err != nil {
		return false, err
	}
	claimed, ok := out[0].(bool)
	if !ok {
		return false, c.outputErr(call, fmt.Errorf("unexpected output type %T", out[0]))
	}
	return claimed, nil
}

// Dependencies are the contracts B3trRound was initialized with.
type Dependencies struct {
	Emissions         common.Address `json:"emissions"`
	XAllocationPool   common.Address `json:"x_allocation_pool"`
	XAllocationVoting common.Address `json:"x_allocation_voting"`
	X2EarnApps        common.Address `json:"x2_earn_apps"`
}

// CheckDependencies reads the four dependency addresses. The reads are
// independent and run concurrently.
func (c *Client) CheckDependencies(ctx context.Context) (*Dependencies, error) {
	deps := &Dependencies{}
	targets := []struct {
		method string
		dst    *common.Address
	}{
		{MethodEmissions, &deps.Emissions},
		{MethodXAllocationPool, &deps.XAllocationPool},
		{MethodXAllocationVoting, &deps.XAllocationVoting},
		{MethodX2EarnApps, &deps.X2EarnApps},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		g.Go(func() error {
			call := chain.Call{Method: target.method}
			out, err := c.read(gctx, call)
			if err != nil {
				return err
			}
			addr, ok := out[0].(common.Address)
			if !ok {
				return c.outputErr(call, fmt.Errorf("unexpected output type %T", out[0]))
			}
			*target.dst = addr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return deps, nil
}

// TxResult describes a confirmed transaction.
type TxResult struct {
	Method      string      `json:"method"`
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
	Logs        int         `json:"logs"`
	// RoundID is the round the transaction concerned; for
	// StartNewRoundAndDistributeAllocations it is the new current round.
	RoundID *big.Int `json:"round_id,omitempty"`
}

// ClaimAllocationsForRound claims the allocations of every eligible,
// unclaimed X-App for roundID in one transaction and waits for it.
func (c *Client) ClaimAllocationsForRound(ctx context.Context, roundID *big.Int) (*TxResult, error) {
	if err := checkRoundID(roundID); err != nil {
		return nil, err
	}
	call := chain.Call{Method: MethodClaimAllocationsForRound, Round: roundID.String()}
	receipt, err := c.submit(ctx, call, roundID)
	if err != nil {
		return nil, err
	}
	return newTxResult(call, receipt, roundID), nil
}

// ClaimAllocationsForPreviousRound resolves the previous round and claims its
// allocations in one transaction.
func (c *Client) ClaimAllocationsForPreviousRound(ctx context.Context) (*TxResult, error) {
	previous, err := c.PreviousRoundID(ctx)
	if err != nil {
		return nil, err
	}
	call := chain.Call{Method: MethodClaimAllocationsForPreviousRound, Round: previous.String()}
	receipt, err := c.submit(ctx, call)
	if err != nil {
		return nil, err
	}
	return newTxResult(call, receipt, previous), nil
}

// StartNewRoundAndDistributeAllocations closes the current round, opens the
// next one and then reads the new current round ID. If only that follow-up
// read fails, the result is returned together with the read error.
func (c *Client) StartNewRoundAndDistributeAllocations(ctx context.Context) (*TxResult, error) {
	call := chain.Call{Method: MethodStartNewRoundAndDistributeAllocations}
	receipt, err := c.submit(ctx, call)
	if err != nil {
		return nil, err
	}

	result := newTxResult(call, receipt, nil)
	current, err := c.CurrentRoundID(ctx)
	if err != nil {
		c.logger.Warn("new round started but current round could not be read",
			slog.String("tx_hash", receipt.TxHash.Hex()),
			slog.String("error", err.Error()),
		)
		return result, err
	}
	result.RoundID = current
	return result, nil
}

func (c *Client) submit(ctx context.Context, call chain.Call, args ...interface{}) (*types.Receipt, error) {
	if c.transactor == nil {
		return nil, config.NewError("", "no signer configured; "+call.Method+" needs a mnemonic", nil)
	}
	data, err := c.contract.Pack(call.Method, args...)
	if err != nil {
		return nil, &chain.RemoteWriteError{Call: call, Err: err}
	}

	c.logger.Debug("submitting transaction",
		slog.String("call", call.String()),
		slog.String("contract", c.contract.Address().Hex()),
		slog.String("from", c.transactor.From().Hex()),
	)
	return c.transactor.Submit(ctx, call, c.contract.Address(), data)
}

func (c *Client) read(ctx context.Context, call chain.Call, args ...interface{}) ([]interface{}, error) {
	c.logger.Debug("contract read",
		slog.String("call", call.String()),
		slog.String("contract", c.contract.Address().Hex()),
	)
	out, err := c.contract.Read(ctx, call, args...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, c.outputErr(call, fmt.Errorf("no outputs"))
	}
	return out, nil
}

func (c *Client) readUint(ctx context.Context, call chain.Call) (*big.Int, error) {
	out, err := c.read(ctx, call)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, c.outputErr(call, fmt.Errorf("unexpected output type %T", out[0]))
	}
	return v, nil
}

func (c *Client) readAppsForRound(ctx context.Context, method string, roundID *big.Int) ([]common.Hash, error) {
	if err := checkRoundID(roundID); err != nil {
		return nil, err
	}
	call := chain.Call{Method: method, Round: roundID.String()}
	out, err := c.read(ctx, call, roundID)
	if err != nil {
		return nil, err
	}
	return c.hashes(call, out, 0)
}

func (c *Client) hashes(call chain.Call, out []interface{}, i int) ([]common.Hash, error) {
	raw, ok := out[i].([][32]byte)
	if !ok {
		return nil, c.outputErr(call, fmt.Errorf("unexpected output type %T", out[i]))
	}
	ids := make([]common.Hash, len(raw))
	for j, id := range raw {
		ids[j] = common.Hash(id)
	}
	return ids, nil
}

func (c *Client) outputErr(call chain.Call, err error) error {
	return &chain.RemoteReadError{Call: call, Address: c.contract.Address(), Err: err}
}

func newTxResult(call chain.Call, receipt *types.Receipt, roundID *big.Int) *TxResult {
	result := &TxResult{
		Method:  call.Method,
		TxHash:  receipt.TxHash,
		GasUsed: receipt.GasUsed,
		Logs:    len(receipt.Logs),
		RoundID: roundID,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result
}
