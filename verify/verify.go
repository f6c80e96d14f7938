// Package verify publishes contract source to Etherscan-compatible block explorers.
package verify

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoAPIKey is returned when the explorer requires an API key and none is configured.
var ErrNoAPIKey = errors.New("block explorer API key is not configured")

// Request describes a deployed contract and the exact inputs it was compiled from.
type Request struct {
	Address         common.Address
	Source          string
	ContractName    string
	CompilerVersion string // As the explorer lists it, e.g. v0.8.24+commit.e11b9ed9
	OptimizerRuns   int
	EVMVersion      string
	ConstructorArgs string // ABI-encoded, hex without 0x
}

// Verifier registers source code for a deployed contract. Implementations return nil when the
// contract is verified, including when it already was.
type Verifier interface {
	Verify(ctx context.Context, req Request) error
}

// Nop is a Verifier that accepts every request without contacting anything.
type Nop struct{}

// Verify implements Verifier.
func (Nop) Verify(context.Context, Request) error { return nil }
