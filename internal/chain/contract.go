package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract binds an ABI to a deployed address.
type Contract struct {
	address common.Address
	abi     abi.ABI
	backend Backend
}

// NewContract creates a contract binding.
func NewContract(address common.Address, parsed abi.ABI, backend Backend) *Contract {
	return &Contract{
		address: address,
		abi:     parsed,
		backend: backend,
	}
}

// ParseABI parses a JSON ABI definition.
func ParseABI(definition string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse ABI: %w", err)
	}
	return parsed, nil
}

// Address returns the bound address.
func (c *Contract) Address() common.Address {
	return c.address
}

// ABI returns the bound ABI.
func (c *Contract) ABI() abi.ABI {
	return c.abi
}

// Pack encodes a call to method.
func (c *Contract) Pack(method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

// Read performs an eth_call of call.Method against the latest block and
// returns the decoded outputs.
func (c *Contract) Read(ctx context.Context, call Call, args ...interface{}) ([]interface{}, error) {
	data, err := c.Pack(call.Method, args...)
	if err != nil {
		return nil, c.readErr(call, err)
	}

	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &c.address,
		Data: data,
	}, nil)
	if err != nil {
		return nil, c.readErr(call, err)
	}
	if len(result) == 0 {
		return nil, c.readErr(call, fmt.Errorf("%w (is %s the right address?)", ErrEmptyResponse, c.address.Hex()))
	}

	values, err := c.abi.Unpack(call.Method, result)
	if err != nil {
		return nil, c.readErr(call, fmt.Errorf("unpack %s: %w", call.Method, err))
	}
	return values, nil
}

func (c *Contract) readErr(call Call, err error) error {
	return &RemoteReadError{Call: call, Address: c.address, Err: err}
}
