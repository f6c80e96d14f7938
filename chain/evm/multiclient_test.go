package evm

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	chainsel "github.com/smartcontractkit/chain-selectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protobase/launchpad/pkg/logger"
)

const (
	goodRPCBody    = `{"jsonrpc":"2.0","id":1,"result":"0x1"}`
	badRPCBody     = `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"internal error"}}`
	limitedRPCBody = `{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"limit exceeded"}}`
	knownTxRPCBody = `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"already known"}}`
)

var sepolia = chainsel.ETHEREUM_TESTNET_SEPOLIA.Selector

// rpcServer answers every request with its current body, or with an HTTP 503 while down.
type rpcServer struct {
	*httptest.Server

	body  atomic.Value
	down  atomic.Bool
	calls atomic.Int32
}

func newRPCServer(t *testing.T, body string) *rpcServer {
	t.Helper()

	s := &rpcServer{}
	s.body.Store(body)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		if s.down.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s.body.Load().(string)))
	}))
	t.Cleanup(s.Close)

	return s
}

// newTestMultiClient builds a MultiClient over already dialed servers, skipping health checks.
func newTestMultiClient(t *testing.T, servers map[string]*rpcServer, order ...string) *MultiClient {
	t.Helper()

	mc := &MultiClient{
		RetryConfig: RetryConfig{Attempts: 2, Delay: time.Millisecond, Timeout: time.Second},
		lggr:        logger.Test(t),
		chainName:   "ethereum-testnet-sepolia",
	}
	for _, name := range order {
		client, err := ethclient.Dial(servers[name].URL)
		require.NoError(t, err)
		mc.endpoints = append(mc.endpoints, endpoint{name: name, Client: client})
	}
	t.Cleanup(mc.Close)

	return mc
}

func TestNewMultiClient(t *testing.T) {
	t.Parallel()

	srv := newRPCServer(t, goodRPCBody)
	lggr := logger.Test(t)

	mc, err := NewMultiClient(lggr, RPCConfig{ChainSelector: sepolia, RPCs: []RPC{
		{Name: "test-rpc", HTTPURL: srv.URL, PreferredURLScheme: URLSchemePreferenceHTTP},
	}})
	require.NoError(t, err)
	t.Cleanup(mc.Close)

	assert.Equal(t, "ethereum-testnet-sepolia", mc.chainName)
	assert.Equal(t, defaultRetryConfig(), mc.RetryConfig)
	assert.Equal(t, "test-rpc", mc.Primary())
	assert.Len(t, mc.endpoints, 1)

	_, err = NewMultiClient(lggr, RPCConfig{ChainSelector: sepolia, RPCs: []RPC{}})
	require.ErrorContains(t, err, "no RPCs provided")

	_, err = NewMultiClient(lggr, RPCConfig{ChainSelector: 1, RPCs: []RPC{{Name: "x", HTTPURL: srv.URL}}})
	require.ErrorContains(t, err, "chain with selector 1 not found")

	mc, err = NewMultiClient(lggr, RPCConfig{ChainSelector: sepolia, RPCs: []RPC{
		{Name: "primary", HTTPURL: srv.URL},
		{Name: "backup", HTTPURL: srv.URL},
	}}, func(c *MultiClient) { c.RetryConfig.Attempts = 3 })
	require.NoError(t, err)
	t.Cleanup(mc.Close)
	assert.Len(t, mc.endpoints, 2)
	assert.Equal(t, uint(3), mc.RetryConfig.Attempts)
}

func TestNewMultiClient_HealthCheckSkipsBadRPC(t *testing.T) {
	t.Parallel()

	badSrv := newRPCServer(t, badRPCBody)
	goodSrv := newRPCServer(t, goodRPCBody)

	mc, err := NewMultiClient(logger.Test(t), RPCConfig{ChainSelector: sepolia, RPCs: []RPC{
		{Name: "bad-rpc", HTTPURL: badSrv.URL},
		{Name: "no-url"},
		{Name: "good-rpc", HTTPURL: goodSrv.URL},
	}})
	require.NoError(t, err)
	t.Cleanup(mc.Close)

	assert.Equal(t, "good-rpc", mc.Primary())
	assert.Len(t, mc.endpoints, 1)

	blockNum, err := mc.BlockNumber(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), blockNum)

	_, err = NewMultiClient(logger.Test(t), RPCConfig{ChainSelector: sepolia, RPCs: []RPC{
		{Name: "bad-rpc", HTTPURL: badSrv.URL},
	}})
	require.ErrorContains(t, err, "no valid RPC clients created")
}

func TestMultiClient_Failover(t *testing.T) {
	t.Parallel()

	servers := map[string]*rpcServer{
		"primary": newRPCServer(t, goodRPCBody),
		"backup":  newRPCServer(t, goodRPCBody),
	}
	mc := newTestMultiClient(t, servers, "primary", "backup")

	servers["primary"].down.Store(true)

	n, err := mc.BlockNumber(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	// Both attempts on the primary, then the backup answers and is promoted.
	assert.Equal(t, int32(2), servers["primary"].calls.Load())
	assert.Equal(t, "backup", mc.Primary())

	_, err = mc.BlockNumber(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(2), servers["primary"].calls.Load(), "the promoted endpoint is tried first")
}

func TestMultiClient_NodeErrorsAreFinal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		primaryBody   string
		wantErr       string
		wantPrimary   string
		wantBackupHit bool
	}{
		{
			name:        "node error is returned without failover",
			primaryBody: badRPCBody,
			wantErr:     "internal error",
			wantPrimary: "primary",
		},
		{
			name:          "rate limiting fails over",
			primaryBody:   limitedRPCBody,
			wantPrimary:   "backup",
			wantBackupHit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			servers := map[string]*rpcServer{
				"primary": newRPCServer(t, tt.primaryBody),
				"backup":  newRPCServer(t, goodRPCBody),
			}
			mc := newTestMultiClient(t, servers, "primary", "backup")

			_, err := mc.BlockNumber(t.Context())
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				assert.Equal(t, int32(1), servers["primary"].calls.Load(), "not retried")
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantBackupHit, servers["backup"].calls.Load() > 0)
			assert.Equal(t, tt.wantPrimary, mc.Primary())
		})
	}
}

func TestMultiClient_AllFail(t *testing.T) {
	t.Parallel()

	servers := map[string]*rpcServer{
		"primary": newRPCServer(t, goodRPCBody),
		"backup":  newRPCServer(t, goodRPCBody),
	}
	servers["primary"].down.Store(true)
	servers["backup"].down.Store(true)
	mc := newTestMultiClient(t, servers, "primary", "backup")

	_, err := mc.SuggestGasPrice(t.Context())
	require.ErrorContains(t, err, "all RPCs failed for chain \"ethereum-testnet-sepolia\"")
	assert.Equal(t, "primary", mc.Primary())
}

func TestMultiClient_Cancelled(t *testing.T) {
	t.Parallel()

	servers := map[string]*rpcServer{
		"primary": newRPCServer(t, goodRPCBody),
		"backup":  newRPCServer(t, goodRPCBody),
	}
	mc := newTestMultiClient(t, servers, "primary", "backup")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := mc.BlockNumber(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, servers["backup"].calls.Load())
}

func TestMultiClient_SendTransaction_AlreadyKnown(t *testing.T) {
	t.Parallel()

	servers := map[string]*rpcServer{"primary": newRPCServer(t, knownTxRPCBody)}
	mc := newTestMultiClient(t, servers, "primary")

	tx := types.NewTx(&types.LegacyTx{Nonce: 1, GasPrice: big.NewInt(1), Gas: 21000, To: &common.Address{}})
	require.NoError(t, mc.SendTransaction(t.Context(), tx))

	servers["primary"].body.Store(badRPCBody)
	require.ErrorContains(t, mc.SendTransaction(t.Context(), tx), "internal error")
}

func TestMultiClient_promote(t *testing.T) {
	t.Parallel()

	names := func(mc *MultiClient) []string {
		var out []string
		for _, e := range mc.endpoints {
			out = append(out, e.name)
		}

		return out
	}

	tests := []struct {
		name    string
		promote string
		want    []string
	}{
		{name: "first backup", promote: "b1", want: []string{"b1", "b2", "b3", "p"}},
		{name: "last backup", promote: "b3", want: []string{"b3", "p", "b1", "b2"}},
		{name: "primary unchanged", promote: "p", want: []string{"p", "b1", "b2", "b3"}},
		{name: "unknown endpoint", promote: "x", want: []string{"p", "b1", "b2", "b3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mc := &MultiClient{endpoints: []endpoint{{name: "p"}, {name: "b1"}, {name: "b2"}, {name: "b3"}}}
			mc.promote(tt.promote)
			assert.Equal(t, tt.want, names(mc))
		})
	}
}

func TestEnsureTimeout(t *testing.T) {
	t.Parallel()

	withDeadline, cancel := context.WithTimeout(t.Context(), 2*time.Minute)
	defer cancel()

	tests := []struct {
		name   string
		parent context.Context //nolint:containedctx
	}{
		{name: "parent with deadline", parent: withDeadline},
		{name: "parent without deadline", parent: context.Background()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancelFunc := ensureTimeout(tt.parent, time.Minute)
			defer cancelFunc()

			deadline, ok := ctx.Deadline()
			require.True(t, ok)

			if parentDeadline, has := tt.parent.Deadline(); has {
				assert.WithinDuration(t, parentDeadline, deadline, 0)
			} else {
				assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 50*time.Millisecond)
			}
		})
	}
}
