package round

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TokenDecimals is the fixed-point precision of B3TR amounts.
const TokenDecimals = 18

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)

// FormatEther renders an 18-decimal amount with trailing zeros trimmed but at
// least one fractional digit: 1500000000000000000 -> "1.5", 0 -> "0.0".
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0.0"
	}

	abs := new(big.Int).Abs(wei)
	whole, frac := new(big.Int).QuoRem(abs, weiPerToken, new(big.Int))

	fraction := frac.String()
	fraction = strings.Repeat("0", TokenDecimals-len(fraction)) + fraction
	fraction = strings.TrimRight(fraction, "0")
	if fraction == "" {
		fraction = "0"
	}

	var b strings.Builder
	if wei.Sign() < 0 {
		b.WriteByte('-')
	}
	b.WriteString(whole.String())
	b.WriteByte('.')
	b.WriteString(fraction)
	return b.String()
}

// FormatBytes32Array renders ids one per line inside brackets, or "[]".
func FormatBytes32Array(ids []common.Hash) string {
	if len(ids) == 0 {
		return "[]"
	}
	lines := make([]string, len(ids))
	for i, id := range ids {
		lines[i] = id.Hex()
	}
	return "[\n  " + strings.Join(lines, ",\n  ") + "\n]"
}
