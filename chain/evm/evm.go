// Package evm is the boundary between the deployment pipeline and an EVM chain: a deployment
// client that can report its signer, submit a contract-creation transaction and wait for its
// receipt, plus the RPC plumbing behind it.
package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/protobase/launchpad/compiler"
)

// OnchainClient is an EVM chain client.
// For EVM specifically we can use existing geth interface to abstract chain clients.
type OnchainClient interface {
	bind.ContractBackend
	bind.DeployBackend

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

// DeployClient deploys compiled artifacts to a single chain.
type DeployClient interface {
	// SignerIdentity returns the address transactions are signed with. ok is false when no signing
	// identity is available.
	SignerIdentity(ctx context.Context) (addr common.Address, ok bool, err error)
	// SubmitDeployment signs and broadcasts a contract-creation transaction and returns its hash as
	// soon as the node accepted it. A zero gasLimit leaves the limit to the client.
	SubmitDeployment(ctx context.Context, artifact *compiler.Artifact, args []any, gasLimit uint64) (common.Hash, error)
	// WaitForConfirmation blocks until the transaction is included and buried under
	// minConfirmations-1 further blocks.
	WaitForConfirmation(ctx context.Context, txHash common.Hash, minConfirmations uint64) (*Receipt, error)
	// ChainSelector identifies the chain the client is connected to.
	ChainSelector() uint64
}

// GasEstimator is implemented by clients that can estimate the gas of a deployment before it
// is submitted.
type GasEstimator interface {
	EstimateDeploymentGas(ctx context.Context, artifact *compiler.Artifact, args []any) (uint64, error)
}

// Receipt is the chain's record of an included deployment transaction.
type Receipt struct {
	TxHash common.Hash
	// ContractAddress is nil when the creation reverted or no contract was created.
	ContractAddress *common.Address
	BlockNumber     uint64
	GasUsed         uint64
	// Status is 1 for success and 0 for a reverted transaction.
	Status uint64
	// RevertReason is a best-effort decoding of why a reverted transaction failed.
	RevertReason string
}

// NewReceipt converts a go-ethereum receipt.
func NewReceipt(r *types.Receipt) *Receipt {
	out := &Receipt{
		TxHash:  r.TxHash,
		GasUsed: r.GasUsed,
		Status:  r.Status,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	if r.Status == types.ReceiptStatusSuccessful && r.ContractAddress != (common.Address{}) {
		addr := r.ContractAddress
		out.ContractAddress = &addr
	}

	return out
}

// ChainName returns "<name> (<selector>)", or just the selector when it is unknown.
func ChainName(selector uint64) string {
	chain, ok := chainsel.ChainBySelector(selector)
	if !ok {
		return fmt.Sprintf("unknown (%d)", selector)
	}

	return fmt.Sprintf("%s (%d)", chain.Name, selector)
}
