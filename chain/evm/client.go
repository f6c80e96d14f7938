package evm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/protobase/launchpad/compiler"
	"github.com/protobase/launchpad/pkg/logger"
)

const (
	// DefaultTickInterval is the receipt polling interval, the same value bind.WaitMined uses.
	DefaultTickInterval = 1 * time.Second
	// DefaultConfirmTimeout bounds how long WaitForConfirmation waits for a receipt.
	DefaultConfirmTimeout = 5 * time.Minute
)

var (
	_ DeployClient = (*Client)(nil)
	_ GasEstimator = (*Client)(nil)
)

// ErrNoDeployerKey is returned when a transaction must be signed by a client without a key.
var ErrNoDeployerKey = errors.New("client has no deployer key")

// Client is a DeployClient backed by a go-ethereum OnchainClient.
type Client struct {
	selector    uint64
	backend     OnchainClient
	deployerKey *bind.TransactOpts

	tickInterval   time.Duration
	confirmTimeout time.Duration
	gasLimit       uint64
	lggr           logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTickInterval sets how often receipts and the chain head are polled.
func WithTickInterval(interval time.Duration) ClientOption {
	return func(c *Client) { c.tickInterval = interval }
}

// WithConfirmTimeout bounds how long WaitForConfirmation waits. Zero disables the bound.
func WithConfirmTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.confirmTimeout = timeout }
}

// WithGasLimit sets the gas limit of deployment transactions submitted without one, instead of
// estimating it at submission.
func WithGasLimit(limit uint64) ClientOption {
	return func(c *Client) { c.gasLimit = limit }
}

// WithLogger sets the logger.
func WithLogger(lggr logger.Logger) ClientOption {
	return func(c *Client) { c.lggr = lggr }
}

// NewClient returns a Client for the chain identified by selector. A nil deployerKey yields a
// client without a signing identity.
func NewClient(selector uint64, backend OnchainClient, deployerKey *bind.TransactOpts, opts ...ClientOption) *Client {
	c := &Client{
		selector:       selector,
		backend:        backend,
		deployerKey:    deployerKey,
		tickInterval:   DefaultTickInterval,
		confirmTimeout: DefaultConfirmTimeout,
		lggr:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ChainSelector returns the chain selector of the chain.
func (c *Client) ChainSelector() uint64 {
	return c.selector
}

// String returns chain name and selector "<name> (<selector>)".
func (c *Client) String() string {
	return ChainName(c.selector)
}

// Backend returns the underlying chain client.
func (c *Client) Backend() OnchainClient {
	return c.backend
}

// SignerIdentity implements DeployClient.
func (c *Client) SignerIdentity(context.Context) (common.Address, bool, error) {
	if c.deployerKey == nil {
		return common.Address{}, false, nil
	}

	return c.deployerKey.From, true, nil
}

// EstimateDeploymentGas estimates the gas a creation of artifact with args would use.
func (c *Client) EstimateDeploymentGas(ctx context.Context, artifact *compiler.Artifact, args []any) (uint64, error) {
	data, err := creationData(artifact, args)
	if err != nil {
		return 0, err
	}

	msg := ethereum.CallMsg{Data: data}
	if c.deployerKey != nil {
		msg.From = c.deployerKey.From
	}

	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("estimate deployment gas of %s on %s: %w", artifact.ContractName, c, err)
	}

	return gas, nil
}

// SubmitDeployment implements DeployClient.
func (c *Client) SubmitDeployment(ctx context.Context, artifact *compiler.Artifact, args []any, gasLimit uint64) (common.Hash, error) {
	if c.deployerKey == nil {
		return common.Hash{}, ErrNoDeployerKey
	}

	parsed, err := artifact.ParsedABI()
	if err != nil {
		return common.Hash{}, err
	}
	code, err := artifact.BytecodeBytes()
	if err != nil {
		return common.Hash{}, err
	}
	coerced, err := CoerceArgs(parsed.Constructor.Inputs, args)
	if err != nil {
		return common.Hash{}, err
	}

	opts := *c.deployerKey
	opts.Context = ctx
	switch {
	case gasLimit > 0:
		opts.GasLimit = gasLimit
	case c.gasLimit > 0:
		opts.GasLimit = c.gasLimit
	}

	addr, tx, _, err := bind.DeployContract(&opts, parsed, code, c.backend, coerced...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("deploy %s on %s: %w", artifact.ContractName, c, withErrorData(err))
	}

	c.lggr.Infow("Deployment transaction sent",
		"contract", artifact.ContractName,
		"chain", c.String(),
		"tx", tx.Hash().Hex(),
		"gasLimit", tx.Gas(),
		"expectedAddress", addr.Hex(),
	)

	return tx.Hash(), nil
}

// WaitForConfirmation implements DeployClient. The receipt of a reverted creation is returned
// without an error and without a contract address.
func (c *Client) WaitForConfirmation(ctx context.Context, txHash common.Hash, minConfirmations uint64) (*Receipt, error) {
	if c.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
		defer cancel()
	}

	c.lggr.Debugw("Waiting for receipt", "tx", txHash.Hex(), "chain", c.String())

	raw, err := WaitMinedWithInterval(ctx, c.tickInterval, c.backend, txHash)
	if err != nil {
		return nil, fmt.Errorf("tx %s failed to confirm on %s: %w", txHash.Hex(), c, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("receipt was nil for tx %s on %s", txHash.Hex(), c)
	}

	receipt := NewReceipt(raw)

	if minConfirmations > 1 {
		target := receipt.BlockNumber + minConfirmations - 1
		if err = waitForHead(ctx, c.tickInterval, c.backend, target); err != nil {
			return nil, fmt.Errorf("tx %s did not reach %d confirmations on %s: %w",
				txHash.Hex(), minConfirmations, c, err)
		}
	}

	if receipt.Status == 0 {
		receipt.RevertReason = c.revertReason(ctx, txHash, raw)
	}

	return receipt, nil
}

func (c *Client) revertReason(ctx context.Context, txHash common.Hash, raw *types.Receipt) string {
	tx, _, err := c.backend.TransactionByHash(ctx, txHash)
	if err != nil {
		return ""
	}

	var from common.Address
	if c.deployerKey != nil {
		from = c.deployerKey.From
	}

	reason, err := getErrorReasonFromTx(ctx, c.backend, from, tx, raw)
	if err != nil {
		return ""
	}

	return reason
}

// creationData returns the creation bytecode followed by the ABI-encoded constructor arguments.
func creationData(artifact *compiler.Artifact, args []any) ([]byte, error) {
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return nil, err
	}
	code, err := artifact.BytecodeBytes()
	if err != nil {
		return nil, err
	}
	coerced, err := CoerceArgs(parsed.Constructor.Inputs, args)
	if err != nil {
		return nil, err
	}

	packed, err := parsed.Pack("", coerced...)
	if err != nil {
		return nil, fmt.Errorf("encode constructor arguments of %s: %w", artifact.ContractName, err)
	}

	return append(code, packed...), nil
}
