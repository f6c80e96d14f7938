package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/protobase/launchpad/chain/evm"
)

var (
	// simChainID is the chain ID for the simulated EVM chain. This is always set to 1337 across
	// all instances of EVM Simulated Chains.
	simChainID = params.AllDevChainProtocolChanges.ChainID
	// prefundAmountWei is the amount the deployer account is funded with: 1,000,000 Ether.
	prefundAmountWei = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(params.Ether))
)

// SimSelector is the chain selector of the simulated chain (chain ID 1337).
var SimSelector = chainsel.GETH_TESTNET.Selector

// SimProviderConfig holds the configuration to initialize the SimProvider.
type SimProviderConfig struct {
	// Optional: BlockTime configures the time between blocks being committed. By default, this is
	// set to 0s, meaning that every transaction is mined into its own block as soon as it is sent.
	BlockTime time.Duration
	// Optional: NoIdentity builds a client without a deployer key.
	NoIdentity bool
	// Optional: ClientOpts configure the returned evm.Client.
	ClientOpts []evm.ClientOption
}

// SimProvider manages a simulated EVM chain backed by go-ethereum's in memory simulated backend.
// It serves tests and offline dry runs of the orchestrator.
type SimProvider struct {
	selector uint64
	config   SimProviderConfig

	backend *simulated.Backend
	sim     *SimClient
	client  *evm.Client
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewSimProvider creates a new SimProvider with the given selector and configuration.
func NewSimProvider(selector uint64, config SimProviderConfig) *SimProvider {
	return &SimProvider{
		selector: selector,
		config:   config,
	}
}

// Initialize sets up the simulated chain with a prefunded deployer account and returns a client
// for it. Call Close to release the chain.
func (p *SimProvider) Initialize(context.Context) (*evm.Client, error) {
	if p.client != nil {
		return p.client, nil // Already initialized
	}

	adminTransactor, err := TransactorRandom().Generate(simChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate deployer key: %w", err)
	}

	genesis := types.GenesisAlloc{
		adminTransactor.From: {Balance: prefundAmountWei},
	}

	backend := simulated.NewBackend(genesis, simulated.WithBlockGasLimit(50_000_000))
	backend.Commit() // Commit the genesis block

	sim, err := NewSimClient(backend, p.config.BlockTime <= 0)
	if err != nil {
		return nil, err
	}

	mineCtx, stop := context.WithCancel(context.Background())
	p.stop = stop
	if p.config.BlockTime > 0 {
		p.startAutoMine(mineCtx, sim, p.config.BlockTime)
	}

	deployerKey := adminTransactor
	if p.config.NoIdentity {
		deployerKey = nil
	}

	p.backend = backend
	p.sim = sim
	p.client = evm.NewClient(p.selector, sim, deployerKey, p.config.ClientOpts...)

	return p.client, nil
}

// Name returns the name of the SimProvider.
func (*SimProvider) Name() string {
	return "Simulated EVM Chain Provider"
}

// ChainSelector returns the chain selector of the simulated chain managed by this provider.
func (p *SimProvider) ChainSelector() uint64 {
	return p.selector
}

// SimClient returns the simulated chain client. You must call Initialize first.
func (p *SimProvider) SimClient() *SimClient {
	return p.sim
}

// Close stops block production and shuts the simulated backend down.
func (p *SimProvider) Close() error {
	if p.client == nil {
		return nil
	}
	p.stop()
	p.wg.Wait()

	if err := p.backend.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close simulated backend: %w", err)
	}

	return nil
}

// startAutoMine commits a new block every blockTime until ctx is done.
func (p *SimProvider) startAutoMine(ctx context.Context, sim *SimClient, blockTime time.Duration) {
	ticker := time.NewTicker(blockTime)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sim.Commit()
			case <-ctx.Done():
				return
			}
		}
	}()
}
