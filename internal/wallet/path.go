package wallet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Path is a parsed BIP32 derivation path. Hardened components carry the
// hdkeychain.HardenedKeyStart offset.
type Path []uint32

// ParsePath parses paths such as m/44'/818'/0'/0. The leading "m/" is
// optional; ', h and H mark hardened components.
func ParsePath(s string) (Path, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "m/")
	trimmed = strings.TrimPrefix(trimmed, "M/")
	if trimmed == "" || trimmed == "m" || trimmed == "M" {
		return nil, fmt.Errorf("invalid derivation path %q: no components", s)
	}

	parts := strings.Split(trimmed, "/")
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		hardened := false
		if n := len(part); n > 0 && (part[n-1] == '\'' || part[n-1] == 'h' || part[n-1] == 'H') {
			hardened = true
			part = part[:n-1]
		}

		index, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid derivation path %q: component %q", s, part)
		}
		if index >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("invalid derivation path %q: component %d out of range", s, index)
		}
		if hardened {
			index += hdkeychain.HardenedKeyStart
		}
		path = append(path, uint32(index))
	}
	return path, nil
}

// Child returns a copy of p extended with a non-hardened index.
func (p Path) Child(index uint32) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, index)
}

func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, c := range p {
		b.WriteByte('/')
		if c >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(uint64(c-hdkeychain.HardenedKeyStart), 10))
			b.WriteByte('\'')
			continue
		}
		b.WriteString(strconv.FormatUint(uint64(c), 10))
	}
	return b.String()
}
