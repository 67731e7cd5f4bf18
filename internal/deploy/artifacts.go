// Package deploy puts B3trRound behind an ERC1967 proxy and deploys auxiliary
// contracts from compiled artifacts.
package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Bidon15/roundctl/internal/chain"
)

// Contract names looked up in the artifacts directory.
const (
	ContractB3trRound            = "B3trRound"
	ContractERC1967Proxy         = "ERC1967Proxy"
	ContractVetDomainsVerifyMock = "VetDomainsVerifyMock"
)

var (
	// ErrArtifactNotFound is returned when no <name>.json exists below the directory.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrNoBytecode is returned for interfaces, abstract contracts and
	// artifacts with unlinked library references.
	ErrNoBytecode = errors.New("artifact has no deployable bytecode")
)

// Artifact is a compiled contract: Hardhat or Foundry JSON output.
type Artifact struct {
	ContractName string          `json:"contractName,omitempty"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     Bytecode        `json:"bytecode"`

	// Path is the file the artifact was read from.
	Path string `json:"-"`
}

// Bytecode is creation code in hex. Hardhat writes it as a plain string,
// Foundry as {"object": "0x..."}.
type Bytecode struct {
	Object string `json:"object"`
}

// UnmarshalJSON accepts both artifact layouts.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Object = s
		return nil
	}

	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("bytecode is neither a string nor an object: %w", err)
	}
	b.Object = obj.Object
	return nil
}

// Bytes returns the decoded creation code.
func (a *Artifact) Bytes() ([]byte, error) {
	code := strings.TrimSpace(a.Bytecode.Object)
	if code != "" && !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	if code == "" || code == "0x" {
		return nil, fmt.Errorf("%s: %w", a.name(), ErrNoBytecode)
	}
	if strings.Contains(code, "__") {
		return nil, fmt.Errorf("%s: %w (unlinked library reference)", a.name(), ErrNoBytecode)
	}

	raw, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("%s: decode bytecode: %w", a.name(), err)
	}
	return raw, nil
}

// ParsedABI parses the artifact's ABI.
func (a *Artifact) ParsedABI() (abi.ABI, error) {
	if len(a.ABI) == 0 {
		return abi.ABI{}, fmt.Errorf("%s: artifact has no ABI", a.name())
	}
	return chain.ParseABI(string(a.ABI))
}

func (a *Artifact) name() string {
	if a.ContractName != "" {
		return a.ContractName
	}
	return strings.TrimSuffix(filepath.Base(a.Path), ".json")
}

// LoadArtifact finds <name>.json anywhere below dir and parses it. Debug
// files (*.dbg.json) and build-info are ignored. More than one match is an
// error, since the deployed contract would be ambiguous.
func LoadArtifact(dir, name string) (*Artifact, error) {
	want := name + ".json"
	var matches []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".dbg.json") {
			return nil
		}
		if d.Name() == want {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan artifacts in %s: %w", dir, err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, dir)
	case 1:
	default:
		return nil, fmt.Errorf("ambiguous artifact %s: %s", name, strings.Join(matches, ", "))
	}

	return readArtifact(matches[0])
}

func readArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	artifact.Path = path
	return &artifact, nil
}
