package deployer

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common"

	"github.com/protobase/launchpad/chain/evm"
	"github.com/protobase/launchpad/compiler"
	"github.com/protobase/launchpad/operations"
	"github.com/protobase/launchpad/verify"
)

// Compiler compiles a source into the artifact of one contract.
type Compiler interface {
	CompileContract(ctx context.Context, source, name string) (*compiler.Artifact, compiler.Diagnostics, error)
}

var _ Compiler = (*compiler.Compiler)(nil)

type compileInput struct {
	Source       string `json:"source"`
	ContractName string `json:"contractName,omitempty"`
}

type compileOutput struct {
	Artifact *compiler.Artifact   `json:"artifact"`
	Warnings compiler.Diagnostics `json:"warnings,omitempty"`
}

type deployInput struct {
	Artifact *compiler.Artifact `json:"artifact"`
	Args     []any              `json:"args"`
	GasLimit uint64             `json:"gasLimit,omitempty"`
}

type confirmInput struct {
	TxHash           common.Hash `json:"txHash"`
	MinConfirmations uint64      `json:"minConfirmations"`
}

var (
	compileOp = operations.NewOperation(
		"compile",
		semver.MustParse("1.0.0"),
		"Compile Solidity source with the pinned compiler settings",
		func(b operations.Bundle, c Compiler, in compileInput) (compileOutput, error) {
			artifact, diags, err := c.CompileContract(b.GetContext(), in.Source, in.ContractName)
			if err != nil {
				return compileOutput{}, err
			}

			return compileOutput{Artifact: artifact, Warnings: diags.Warnings()}, nil
		},
	)

	resolveSignerOp = operations.NewOperation(
		"resolve-signer",
		semver.MustParse("1.0.0"),
		"Resolve the account deployment transactions are signed with",
		func(b operations.Bundle, c evm.DeployClient, _ operations.EmptyInput) (common.Address, error) {
			addr, ok, err := c.SignerIdentity(b.GetContext())
			if err != nil {
				return common.Address{}, fmt.Errorf("resolve signer: %w", err)
			}
			if !ok {
				return common.Address{}, ErrNoIdentity
			}

			return addr, nil
		},
	)

	estimateGasOp = operations.NewOperation(
		"estimate-gas",
		semver.MustParse("1.0.0"),
		"Estimate the gas of the contract creation",
		func(b operations.Bundle, e evm.GasEstimator, in deployInput) (uint64, error) {
			return e.EstimateDeploymentGas(b.GetContext(), in.Artifact, in.Args)
		},
	)

	submitOp = operations.NewOperation(
		"submit-deployment",
		semver.MustParse("1.0.0"),
		"Sign and broadcast the contract creation transaction",
		func(b operations.Bundle, c evm.DeployClient, in deployInput) (common.Hash, error) {
			hash, err := c.SubmitDeployment(b.GetContext(), in.Artifact, in.Args, in.GasLimit)
			if err != nil {
				return common.Hash{}, &SubmissionError{Err: err}
			}

			return hash, nil
		},
	)

	confirmOp = operations.NewOperation(
		"wait-for-confirmation",
		semver.MustParse("1.0.0"),
		"Wait until the creation transaction is mined and buried",
		func(b operations.Bundle, c evm.DeployClient, in confirmInput) (*evm.Receipt, error) {
			return c.WaitForConfirmation(b.GetContext(), in.TxHash, in.MinConfirmations)
		},
	)

	verifyOp = operations.NewOperation(
		"verify-source",
		semver.MustParse("1.0.0"),
		"Publish the source to the block explorer",
		func(b operations.Bundle, v verify.Verifier, in verify.Request) (bool, error) {
			if err := v.Verify(b.GetContext(), in); err != nil {
				return false, err
			}

			return true, nil
		},
	)
)
