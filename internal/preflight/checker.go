// Package preflight checks that a network is usable before roundctl reads
// from or writes to it.
package preflight

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/roundctl/internal/chain"
	"github.com/Bidon15/roundctl/internal/round"
)

// DefaultTimeout is the default timeout for RPC calls.
const DefaultTimeout = 10 * time.Second

// CheckName identifies a specific pre-flight check.
type CheckName string

const (
	// CheckRPCReachable verifies the RPC endpoint answers.
	CheckRPCReachable CheckName = "rpc_reachable"
	// CheckChainIDMatch verifies the chain ID matches the network's.
	CheckChainIDMatch CheckName = "chain_id_match"
	// CheckContractCode verifies code is deployed at the contract address.
	CheckContractCode CheckName = "contract_code"
	// CheckSignerBalance verifies the signer can pay for gas.
	CheckSignerBalance CheckName = "signer_balance"
)

// CheckResult represents the result of a single pre-flight check.
type CheckResult struct {
	Name    CheckName              `json:"name"`
	Passed  bool                   `json:"passed"`
	Skipped bool                   `json:"skipped,omitempty"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Request contains the parameters for pre-flight checks.
type Request struct {
	Network         string         `json:"network"`
	RPCURL          string         `json:"rpc_url"`
	ChainID         uint64         `json:"chain_id"`
	ContractAddress common.Address `json:"contract_address"`
	// SignerAddress enables the balance check when set.
	SignerAddress *common.Address `json:"signer_address,omitempty"`
}

// Response contains the results of all pre-flight checks.
type Response struct {
	OK     bool          `json:"ok"`
	Checks []CheckResult `json:"checks"`
}

// DialFunc opens a connection to an RPC endpoint.
type DialFunc func(ctx context.Context, rpcURL string) (chain.Client, error)

// Checker performs pre-flight validation checks.
type Checker struct {
	timeout time.Duration
	dial    DialFunc
}

// NewChecker creates a new pre-flight checker. A nil dial uses chain.Dial.
func NewChecker(dial DialFunc) *Checker {
	if dial == nil {
		dial = chain.Dial
	}
	return &Checker{
		timeout: DefaultTimeout,
		dial:    dial,
	}
}

// WithTimeout sets a custom timeout for RPC calls.
func (c *Checker) WithTimeout(timeout time.Duration) *Checker {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// Run performs all pre-flight checks and returns the results.
func (c *Checker) Run(ctx context.Context, req *Request) (*Response, error) {
	if req.RPCURL == "" {
		return nil, fmt.Errorf("invalid request: rpc_url is required")
	}

	rpcCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response := &Response{
		OK:     true,
		Checks: make([]CheckResult, 0, 4),
	}
	record := func(result CheckResult) {
		response.Checks = append(response.Checks, result)
		if !result.Passed && !result.Skipped {
			response.OK = false
		}
	}

	client, chainID, reachable := c.checkRPCReachable(rpcCtx, req.RPCURL)
	record(reachable)
	if !reachable.Passed {
		return response, nil
	}
	defer client.Close()

	record(checkChainIDMatch(chainID, req.ChainID))
	record(checkContractCode(rpcCtx, client, req.ContractAddress))
	if req.SignerAddress != nil {
		record(checkSignerBalance(rpcCtx, client, *req.SignerAddress))
	}
	return response, nil
}

// Failed returns the names of the checks that failed.
func (r *Response) Failed() []CheckName {
	var names []CheckName
	for _, check := range r.Checks {
		if !check.Passed && !check.Skipped {
			names = append(names, check.Name)
		}
	}
	return names
}

func (c *Checker) checkRPCReachable(ctx context.Context, rpcURL string) (chain.Client, *big.Int, CheckResult) {
	result := CheckResult{
		Name: CheckRPCReachable,
	}

	client, err := c.dial(ctx, rpcURL)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to connect to RPC: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return nil, nil, result
	}

	// Dialing HTTP endpoints is lazy; make one call to prove the connection.
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		result.Message = fmt.Sprintf("RPC connection failed: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return nil, nil, result
	}

	result.Passed = true
	result.Message = "Connected to RPC successfully"
	return client, chainID, result
}

func checkChainIDMatch(actual *big.Int, expected uint64) CheckResult {
	result := CheckResult{
		Name: CheckChainIDMatch,
	}
	if expected == 0 {
		result.Skipped = true
		result.Message = fmt.Sprintf("No expected chain ID configured (node reports %s)", actual)
		return result
	}

	if actual.Cmp(new(big.Int).SetUint64(expected)) != 0 {
		result.Message = fmt.Sprintf("Chain ID mismatch: expected %d, got %s", expected, actual)
		result.Details = map[string]interface{}{
			"expected": expected,
			"actual":   actual.String(),
		}
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Chain ID %d confirmed", expected)
	result.Details = map[string]interface{}{
		"chain_id": expected,
	}
	return result
}

func checkContractCode(ctx context.Context, client chain.Backend, address common.Address) CheckResult {
	result := CheckResult{
		Name: CheckContractCode,
		Details: map[string]interface{}{
			"address": address.Hex(),
		},
	}
	if address == (common.Address{}) {
		result.Message = "Contract address is the zero address (not deployed on this network)"
		return result
	}

	code, err := client.CodeAt(ctx, address, nil)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to read contract code: %v", err)
		result.Details["error"] = err.Error()
		return result
	}
	if len(code) == 0 {
		result.Message = fmt.Sprintf("No contract code at %s", address.Hex())
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Contract code present at %s (%d bytes)", address.Hex(), len(code))
	result.Details["code_size"] = len(code)
	return result
}

func checkSignerBalance(ctx context.Context, client chain.Backend, address common.Address) CheckResult {
	result := CheckResult{
		Name: CheckSignerBalance,
	}

	balance, err := client.BalanceAt(ctx, address, nil)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to get signer balance: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return result
	}

	have := round.FormatEther(balance)
	result.Details = map[string]interface{}{
		"address":  address.Hex(),
		"have_wei": balance.String(),
		"have":     have,
	}
	if balance.Sign() == 0 {
		result.Message = fmt.Sprintf("Signer %s has no balance to pay for gas", address.Hex())
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Signer has balance: %s", have)
	return result
}
