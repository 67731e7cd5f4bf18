package round

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NoRound is the previous round ID reported before any round has ended.
const NoRound = 0

var (
	// ErrInvalidRoundID is returned for negative, oversized or unparsable round IDs.
	ErrInvalidRoundID = errors.New("invalid round ID")

	// ErrInvalidAppID is returned for app IDs that are not 32 bytes of hex.
	ErrInvalidAppID = errors.New("invalid app ID")
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// IsNoRound reports whether id is the "no previous round" sentinel.
func IsNoRound(id *big.Int) bool {
	return id == nil || id.Sign() == 0
}

// ParseRoundID parses a decimal or 0x-prefixed hexadecimal round ID.
func ParseRoundID(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidRoundID)
	}

	id := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		_, ok = id.SetString(s[2:], 16)
	} else {
		_, ok = id.SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoundID, s)
	}
	if err := checkRoundID(id); err != nil {
		return nil, err
	}
	return id, nil
}

// ParseAppID parses a 0x-prefixed 32-byte hex X-App identifier.
func ParseAppID(s string) (common.Hash, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %q: %v", ErrInvalidAppID, s, err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q: want %d bytes, got %d", ErrInvalidAppID, s, common.HashLength, len(raw))
	}
	return common.BytesToHash(raw), nil
}

func checkRoundID(id *big.Int) error {
	switch {
	case id == nil:
		return fmt.Errorf("%w: missing", ErrInvalidRoundID)
	case id.Sign() < 0:
		return fmt.Errorf("%w: %s is negative", ErrInvalidRoundID, id)
	case id.Cmp(maxUint256) > 0:
		return fmt.Errorf("%w: %s exceeds uint256", ErrInvalidRoundID, id)
	}
	return nil
}
