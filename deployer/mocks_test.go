package deployer

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"github.com/protobase/launchpad/chain/evm"
	"github.com/protobase/launchpad/compiler"
	"github.com/protobase/launchpad/verify"
)

const (
	testSelector = uint64(16015286601757825753) // ethereum-testnet-sepolia
	testSource   = "contract Storage { constructor(uint256 initial) {} function retrieve() public view returns (uint256) {} }"
)

var (
	testArtifact = &compiler.Artifact{
		ContractName: "Storage",
		Bytecode:     "0x6080604052",
		RawABI: json.RawMessage(`[` +
			`{"inputs":[{"internalType":"uint256","name":"initial","type":"uint256"}],"stateMutability":"nonpayable","type":"constructor"},` +
			`{"inputs":[],"name":"retrieve","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}` +
			`]`),
		CompilerVersion: "v0.8.24+commit.e11b9ed9",
		OptimizerRuns:   compiler.OptimizerRuns,
	}
	testArgs     = []any{"42"}
	testSigner   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testTxHash   = common.HexToHash("0x9fc76417374aa880d4449a1f7f31ec597f00b1f6f3dd2d66f4c9c6c445836d8b")
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func testReceipt() *evm.Receipt {
	addr := testContract

	return &evm.Receipt{
		TxHash:          testTxHash,
		ContractAddress: &addr,
		BlockNumber:     123,
		GasUsed:         104_201,
		Status:          1,
	}
}

type mockCompiler struct {
	mock.Mock
}

func (m *mockCompiler) CompileContract(ctx context.Context, source, name string) (*compiler.Artifact, compiler.Diagnostics, error) {
	args := m.Called(ctx, source, name)
	artifact, _ := args.Get(0).(*compiler.Artifact)
	diags, _ := args.Get(1).(compiler.Diagnostics)

	return artifact, diags, args.Error(2)
}

type mockClient struct {
	mock.Mock

	selector uint64
}

var _ evm.DeployClient = (*mockClient)(nil)

func newMockClient() *mockClient {
	return &mockClient{selector: testSelector}
}

func (m *mockClient) ChainSelector() uint64 { return m.selector }

func (m *mockClient) SignerIdentity(ctx context.Context) (common.Address, bool, error) {
	args := m.Called(ctx)

	return args.Get(0).(common.Address), args.Bool(1), args.Error(2)
}

func (m *mockClient) SubmitDeployment(ctx context.Context, artifact *compiler.Artifact, a []any, gasLimit uint64) (common.Hash, error) {
	args := m.Called(ctx, artifact, a, gasLimit)

	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *mockClient) WaitForConfirmation(ctx context.Context, txHash common.Hash, minConfirmations uint64) (*evm.Receipt, error) {
	args := m.Called(ctx, txHash, minConfirmations)
	receipt, _ := args.Get(0).(*evm.Receipt)

	return receipt, args.Error(1)
}

// mockEstimatingClient additionally implements evm.GasEstimator.
type mockEstimatingClient struct {
	mockClient
}

var _ evm.GasEstimator = (*mockEstimatingClient)(nil)

func (m *mockEstimatingClient) EstimateDeploymentGas(ctx context.Context, artifact *compiler.Artifact, a []any) (uint64, error) {
	args := m.Called(ctx, artifact, a)

	return args.Get(0).(uint64), args.Error(1)
}

type mockVerifier struct {
	mock.Mock
}

var _ verify.Verifier = (*mockVerifier)(nil)

func (m *mockVerifier) Verify(ctx context.Context, req verify.Request) error {
	return m.Called(ctx, req).Error(0)
}
