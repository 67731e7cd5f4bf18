package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors for errors.Is matching.
var (
	ErrRemoteRead  = errors.New("remote read failed")
	ErrRemoteWrite = errors.New("remote write failed")
	ErrReverted    = errors.New("transaction reverted")

	ErrNoCode        = errors.New("no contract code at address")
	ErrEmptyResponse = errors.New("empty response from contract call")
)

// Call names a contract method together with the round/app it concerns, so
// errors and logs can say exactly what was attempted.
type Call struct {
	Method string
	Round  string
	App    string
}

func (c Call) String() string {
	var ctx []string
	if c.Round != "" {
		ctx = append(ctx, "round "+c.Round)
	}
	if c.App != "" {
		ctx = append(ctx, "app "+c.App)
	}
	if len(ctx) == 0 {
		return c.Method
	}
	return fmt.Sprintf("%s (%s)", c.Method, strings.Join(ctx, ", "))
}

// RemoteReadError is returned when a read-only call fails. No state changed.
type RemoteReadError struct {
	Call    Call
	Address common.Address
	Err     error
}

func (e *RemoteReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Call, e.Err)
}

func (e *RemoteReadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRemoteRead.
func (e *RemoteReadError) Is(target error) bool { return target == ErrRemoteRead }

// RemoteWriteError is returned when a transaction could not be submitted or
// its receipt could not be obtained. TxHash is zero if nothing was sent.
type RemoteWriteError struct {
	Call   Call
	TxHash common.Hash
	Err    error
}

func (e *RemoteWriteError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("submit %s: %v", e.Call, e.Err)
	}
	return fmt.Sprintf("transaction %s for %s: %v", e.TxHash.Hex(), e.Call, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRemoteWrite.
func (e *RemoteWriteError) Is(target error) bool { return target == ErrRemoteWrite }

// TransactionRevertedError is returned when a transaction was included but
// the contract rejected it.
type TransactionRevertedError struct {
	Call        Call
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

func (e *TransactionRevertedError) Error() string {
	return fmt.Sprintf("transaction %s for %s reverted in block %d", e.TxHash.Hex(), e.Call, e.BlockNumber)
}

// Is reports whether target is ErrReverted.
func (e *TransactionRevertedError) Is(target error) bool { return target == ErrReverted }
