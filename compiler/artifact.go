package compiler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Param is an input or output of an ABI entry.
type Param struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	InternalType string  `json:"internalType,omitempty"`
	Indexed      bool    `json:"indexed,omitempty"`
	Components   []Param `json:"components,omitempty"`
}

// ABIEntry is one callable operation or event shape of a compiled contract.
type ABIEntry struct {
	// Kind is the entry type: function, constructor, event, error, fallback or receive.
	Kind            string  `json:"type"`
	Name            string  `json:"name,omitempty"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs"`
	StateMutability string  `json:"stateMutability,omitempty"`
	Anonymous       bool    `json:"anonymous,omitempty"`
}

// Artifact is the immutable result of a successful compilation: the creation bytecode and the
// interface descriptor of the selected contract.
type Artifact struct {
	ContractName string `json:"contractName"`
	// Bytecode is the 0x-prefixed hex encoded creation bytecode.
	Bytecode string `json:"bytecode"`
	// ABI is the interface descriptor in the order the compiler emitted it.
	ABI []ABIEntry `json:"abi"`
	// RawABI is the interface descriptor exactly as the compiler emitted it.
	RawABI json.RawMessage `json:"rawAbi"`
	// CompilerVersion is the compiler version in the form block explorers expect,
	// e.g. v0.8.24+commit.e11b9ed9.
	CompilerVersion string `json:"compilerVersion"`
	OptimizerRuns   uint64 `json:"optimizerRuns"`
}

// BytecodeBytes decodes the hex bytecode.
func (a *Artifact) BytecodeBytes() ([]byte, error) {
	b, err := hexutil.Decode(a.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode of %s: %w", a.ContractName, err)
	}

	return b, nil
}

// ParsedABI parses the interface descriptor with go-ethereum's ABI parser.
func (a *Artifact) ParsedABI() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(a.RawABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi of %s: %w", a.ContractName, err)
	}

	return parsed, nil
}

// Functions returns the names of the function entries, in descriptor order.
func (a *Artifact) Functions() []string {
	var names []string
	for _, e := range a.ABI {
		if e.Kind == "function" {
			names = append(names, e.Name)
		}
	}

	return names
}

// Hash returns the hex encoded sha256 of the bytecode, a cheap identity for comparing builds.
func (a *Artifact) Hash() string {
	sum := sha256.Sum256([]byte(a.Bytecode))
	return hex.EncodeToString(sum[:])
}
