package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/protobase/launchpad/chain/evm"
	"github.com/protobase/launchpad/pkg/logger"
)

// RPCProviderConfig holds the configuration to initialize the RPCProvider.
type RPCProviderConfig struct {
	// Optional: A generator for the deployer key. Use TransactorFromRaw to create a deployer key
	// from a private key. Without one the client has no signing identity and deployments fail
	// with "no account connected".
	DeployerTransactorGen TransactorGenerator
	// Required: At least one RPC must be provided to connect to the EVM node.
	RPCs []evm.RPC
	// Optional: MultiClientOpts configure the MultiClient, e.g. its retry behaviour.
	MultiClientOpts []func(client *evm.MultiClient)
	// Optional: ClientOpts configure the returned evm.Client.
	ClientOpts []evm.ClientOption
	// Optional: Logger is the logger to use for the RPCProvider. If not provided, a default
	// logger will be used.
	Logger logger.Logger
}

// validate checks if the RPCProviderConfig is valid.
func (c RPCProviderConfig) validate() error {
	if len(c.RPCs) == 0 {
		return errors.New("at least one RPC is required")
	}

	return nil
}

// RPCProvider builds a deployment client that connects to an EVM node via RPC.
type RPCProvider struct {
	selector uint64
	config   RPCProviderConfig

	multi  *evm.MultiClient
	client *evm.Client
}

// NewRPCProvider creates a new RPCProvider with the given selector and configuration.
func NewRPCProvider(selector uint64, config RPCProviderConfig) *RPCProvider {
	return &RPCProvider{
		selector: selector,
		config:   config,
	}
}

// Initialize dials the configured RPCs and returns the deployment client.
func (p *RPCProvider) Initialize(context.Context) (*evm.Client, error) {
	if p.client != nil {
		return p.client, nil // Already initialized
	}

	if p.config.Logger == nil {
		lggr, err := logger.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create default logger: %w", err)
		}
		p.config.Logger = lggr
	}

	if err := p.config.validate(); err != nil {
		return nil, fmt.Errorf("failed to validate provider config: %w", err)
	}

	chainIDStr, err := chainsel.GetChainIDFromSelector(p.selector)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID from selector %d: %w", p.selector, err)
	}

	chainID, ok := new(big.Int).SetString(chainIDStr, 10)
	if !ok {
		return nil, fmt.Errorf("failed to convert chain ID %s to big.Int", chainIDStr)
	}

	var deployerKey *bind.TransactOpts
	if p.config.DeployerTransactorGen != nil {
		deployerKey, err = p.config.DeployerTransactorGen.Generate(chainID)
		if err != nil {
			return nil, fmt.Errorf("failed to generate deployer key: %w", err)
		}
	}

	multi, err := evm.NewMultiClient(p.config.Logger, evm.RPCConfig{
		ChainSelector: p.selector,
		RPCs:          p.config.RPCs,
	}, p.config.MultiClientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-client: %w", err)
	}

	opts := append([]evm.ClientOption{evm.WithLogger(p.config.Logger)}, p.config.ClientOpts...)

	p.multi = multi
	p.client = evm.NewClient(p.selector, multi, deployerKey, opts...)

	return p.client, nil
}

// Name returns the name of the RPCProvider.
func (*RPCProvider) Name() string {
	return "EVM RPC Chain Provider"
}

// ChainSelector returns the chain selector of the chain managed by this provider.
func (p *RPCProvider) ChainSelector() uint64 {
	return p.selector
}

// Close closes the RPC connections.
func (p *RPCProvider) Close() error {
	if p.multi != nil {
		p.multi.Close()
	}

	return nil
}
