package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"
	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/protobase/launchpad/pkg/logger"
)

const (
	RPCDefaultRetryAttempts = 1
	RPCDefaultRetryDelay    = time.Second
	RPCDefaultRetryTimeout  = 10 * time.Second

	RPCDefaultDialRetryAttempts = 1
	RPCDefaultDialRetryDelay    = time.Second
	RPCDefaultDialTimeout       = 10 * time.Second

	RPCDefaultHealthCheckTimeout = 2 * time.Second

	// rpcLimitExceeded is the JSON-RPC code nodes use for rate limiting.
	rpcLimitExceeded = -32005
)

// RetryConfig tunes how a MultiClient retries an endpoint before failing over to the next one.
type RetryConfig struct {
	Attempts     uint
	Delay        time.Duration
	Timeout      time.Duration // Per attempt, unless the caller's context has a deadline
	DialAttempts uint
	DialDelay    time.Duration
	DialTimeout  time.Duration
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     RPCDefaultRetryAttempts,
		Delay:        RPCDefaultRetryDelay,
		Timeout:      RPCDefaultRetryTimeout,
		DialAttempts: RPCDefaultDialRetryAttempts,
		DialDelay:    RPCDefaultDialRetryDelay,
		DialTimeout:  RPCDefaultDialTimeout,
	}
}

// endpoint is a dialed RPC.
type endpoint struct {
	name string
	*ethclient.Client
}

var _ OnchainClient = (*MultiClient)(nil)

// MultiClient is an OnchainClient over the ordered RPCs of one chain. A call that fails on an
// endpoint for a transport reason moves on to the next one, and the endpoint that answers is
// tried first from then on. Errors reported by a node are returned as is: another node would
// give the same answer.
type MultiClient struct {
	RetryConfig RetryConfig

	lggr      logger.Logger
	chainName string

	mu        sync.RWMutex
	endpoints []endpoint
}

// NewMultiClient dials every RPC of rpcsCfg, dropping endpoints that cannot be dialed or fail a
// health check.
func NewMultiClient(lggr logger.Logger, rpcsCfg RPCConfig, opts ...func(client *MultiClient)) (*MultiClient, error) {
	if len(rpcsCfg.RPCs) == 0 {
		return nil, errors.New("no RPCs provided, need at least one")
	}
	chain, ok := chainsel.ChainBySelector(rpcsCfg.ChainSelector)
	if !ok {
		return nil, fmt.Errorf("chain with selector %d not found", rpcsCfg.ChainSelector)
	}

	mc := &MultiClient{
		RetryConfig: defaultRetryConfig(),
		lggr:        lggr,
		chainName:   chain.Name,
	}
	for _, opt := range opts {
		opt(mc)
	}

	for _, r := range rpcsCfg.RPCs {
		client, err := mc.dial(r)
		if err != nil {
			lggr.Warnw("Skipping RPC that could not be dialed", "rpc", r.Name, "chain", mc.chainName, "error", err)
			continue
		}
		if err = healthCheck(client); err != nil {
			lggr.Warnw("Skipping RPC that failed its health check", "rpc", r.Name, "chain", mc.chainName, "error", err)
			client.Close()

			continue
		}
		mc.endpoints = append(mc.endpoints, endpoint{name: r.Name, Client: client})
	}

	if len(mc.endpoints) == 0 {
		return nil, errors.New("no valid RPC clients created")
	}

	return mc, nil
}

// Primary returns the name of the endpoint calls are sent to first.
func (mc *MultiClient) Primary() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return mc.endpoints[0].name
}

// Close closes every endpoint.
func (mc *MultiClient) Close() {
	for _, e := range mc.snapshot() {
		e.Close()
	}
}

// SendTransaction broadcasts tx. A node that already knows the transaction got it from an
// earlier attempt, so that answer counts as sent.
func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	_, err := failover(ctx, mc, "SendTransaction", func(ctx context.Context, c *ethclient.Client) (struct{}, error) {
		err := c.SendTransaction(ctx, tx)
		if err != nil && isAlreadyKnown(err) {
			mc.lggr.Infow("Transaction already known to node", "chain", mc.chainName, "txHash", tx.Hash().Hex())
			return struct{}{}, nil
		}

		return struct{}{}, err
	})

	return err
}

// TransactionReceipt asks the primary only. A missing receipt is the normal answer while a
// transaction is pending, and callers poll for it anyway.
func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return mc.snapshot()[0].TransactionReceipt(ctx, txHash)
}

func (mc *MultiClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return failover(ctx, mc, "CallContract", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CallContract(ctx, msg, blockNumber)
	})
}

func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return failover(ctx, mc, "CodeAt", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CodeAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return failover(ctx, mc, "PendingCodeAt", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.PendingCodeAt(ctx, account)
	})
}

func (mc *MultiClient) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	return failover(ctx, mc, "NonceAt", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.NonceAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return failover(ctx, mc, "PendingNonceAt", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.PendingNonceAt(ctx, account)
	})
}

func (mc *MultiClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return failover(ctx, mc, "BalanceAt", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.BalanceAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return failover(ctx, mc, "HeaderByNumber", func(ctx context.Context, c *ethclient.Client) (*types.Header, error) {
		return c.HeaderByNumber(ctx, number)
	})
}

func (mc *MultiClient) BlockNumber(ctx context.Context) (uint64, error) {
	return failover(ctx, mc, "BlockNumber", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return failover(ctx, mc, "SuggestGasPrice", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasPrice(ctx)
	})
}

func (mc *MultiClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return failover(ctx, mc, "SuggestGasTipCap", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasTipCap(ctx)
	})
}

func (mc *MultiClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return failover(ctx, mc, "EstimateGas", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.EstimateGas(ctx, call)
	})
}

func (mc *MultiClient) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	type found struct {
		tx      *types.Transaction
		pending bool
	}
	f, err := failover(ctx, mc, "TransactionByHash", func(ctx context.Context, c *ethclient.Client) (found, error) {
		tx, pending, err := c.TransactionByHash(ctx, hash)
		return found{tx, pending}, err
	})

	return f.tx, f.pending, err
}

func (mc *MultiClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return failover(ctx, mc, "FilterLogs", func(ctx context.Context, c *ethclient.Client) ([]types.Log, error) {
		return c.FilterLogs(ctx, q)
	})
}

func (mc *MultiClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return failover(ctx, mc, "SubscribeFilterLogs", func(ctx context.Context, c *ethclient.Client) (ethereum.Subscription, error) {
		return c.SubscribeFilterLogs(ctx, q, ch)
	})
}

// failover runs op against each endpoint in turn, retrying each one per the RetryConfig, until
// one succeeds or op fails with an error no other endpoint would avoid.
func failover[T any](ctx context.Context, mc *MultiClient, opName string, op func(context.Context, *ethclient.Client) (T, error)) (T, error) {
	var (
		result  T
		lastErr error
	)
	traceID := uuid.New()

	for i, e := range mc.snapshot() {
		err := retry.Do(func() error {
			attemptCtx, cancel := ensureTimeout(ctx, mc.RetryConfig.Timeout)
			defer cancel()

			var err error
			result, err = op(attemptCtx, e.Client)
			if err != nil && !transient(err) {
				return retry.Unrecoverable(err)
			}

			return err
		},
			retry.Context(ctx),
			retry.Attempts(mc.RetryConfig.Attempts),
			retry.Delay(mc.RetryConfig.Delay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				mc.lggr.Warnw("RPC call failed, retrying", "traceID", traceID, "chain", mc.chainName,
					"op", opName, "rpc", e.name, "attempt", n+1, "error", withErrorData(err))
			}),
		)
		if err == nil {
			if i > 0 {
				mc.promote(e.name)
				mc.lggr.Infow("RPC failed over", "traceID", traceID, "chain", mc.chainName, "op", opName, "rpc", e.name)
			}

			return result, nil
		}
		if !transient(err) || ctx.Err() != nil {
			var zero T
			return zero, err
		}

		lastErr = err
		mc.lggr.Warnw("RPC exhausted, trying next", "traceID", traceID, "chain", mc.chainName, "op", opName,
			"rpc", e.name, "error", withErrorData(err))
	}

	var zero T

	return zero, errors.Join(lastErr, fmt.Errorf("all RPCs failed for chain %q", mc.chainName))
}

func (mc *MultiClient) dial(r RPC) (*ethclient.Client, error) {
	url, err := r.ToEndpoint()
	if err != nil {
		return nil, err
	}

	var client *ethclient.Client
	err = retry.Do(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), mc.RetryConfig.DialTimeout)
		defer cancel()

		var derr error
		client, derr = ethclient.DialContext(ctx, url)

		return derr
	},
		retry.Attempts(mc.RetryConfig.DialAttempts),
		retry.Delay(mc.RetryConfig.DialDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			mc.lggr.Debugw("Dialing RPC failed, retrying", "chain", mc.chainName, "rpc", r.Name, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC %s for chain %s: %w", r.Name, mc.chainName, err)
	}

	return client, nil
}

// promote moves the named endpoint to the front. Endpoints that were tried before it and failed
// keep their relative order at the back.
func (mc *MultiClient) promote(name string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	i := slices.IndexFunc(mc.endpoints, func(e endpoint) bool { return e.name == name })
	if i <= 0 {
		return
	}
	mc.endpoints = slices.Concat(mc.endpoints[i:], mc.endpoints[:i])
}

func (mc *MultiClient) snapshot() []endpoint {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return slices.Clone(mc.endpoints)
}

// healthCheck calls eth_blockNumber.
func healthCheck(client *ethclient.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), RPCDefaultHealthCheckTimeout)
	defer cancel()

	if _, err := client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	return nil
}

// ensureTimeout bounds ctx by timeout unless it already has a deadline.
func ensureTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, timeout)
}

// transient reports whether err is worth retrying on the same or another endpoint. Answers from
// a node are final, except rate limiting.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var rerr rpc.Error
	if errors.As(err, &rerr) {
		return rerr.ErrorCode() == rpcLimitExceeded
	}

	return true
}

func isAlreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}

// withErrorData appends the revert data of a JSON-RPC error, if any, to its message.
func withErrorData(err error) error {
	var d rpc.DataError
	if errors.As(err, &d) {
		return fmt.Errorf("%s: %v", d.Error(), d.ErrorData())
	}

	return err
}
