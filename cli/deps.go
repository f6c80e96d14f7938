package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/protobase/launchpad/chain/evm"
	"github.com/protobase/launchpad/chain/evm/provider"
	"github.com/protobase/launchpad/compiler"
	"github.com/protobase/launchpad/config"
	"github.com/protobase/launchpad/config/network"
	"github.com/protobase/launchpad/pkg/logger"
	"github.com/protobase/launchpad/simulate"
	"github.com/protobase/launchpad/verify"
)

// ConfigLoaderFunc loads the configuration from an optional file.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// NetworksLoaderFunc loads the networks manifest.
type NetworksLoaderFunc func(paths ...string) (*network.Config, error)

// LoggerFunc builds the runtime logger.
type LoggerFunc func(cfg config.LogConfig) (logger.Logger, error)

// BackendFunc returns the Solidity compiler backend.
type BackendFunc func(cfg config.CompilerConfig) compiler.Backend

// ClientFunc connects to a network from the manifest. The closer releases the connection.
type ClientFunc func(ctx context.Context, cfg *config.Config, n network.Network, lggr logger.Logger) (evm.DeployClient, io.Closer, error)

// DevnetFunc starts an in-process development chain. The closer stops it.
type DevnetFunc func(ctx context.Context, cfg *config.Config, lggr logger.Logger) (evm.DeployClient, io.Closer, error)

// VerifierFunc returns the source verifier of a network, or nil when it has no block explorer.
type VerifierFunc func(cfg *config.Config, n network.Network, lggr logger.Logger) verify.Verifier

// Deps holds the injectable dependencies of the commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader loads the configuration.
	// Default: config.Load
	ConfigLoader ConfigLoaderFunc

	// NetworksLoader loads the networks manifest.
	// Default: network.Load
	NetworksLoader NetworksLoaderFunc

	// Logger builds the runtime logger.
	// Default: a zap logger at the configured level
	Logger LoggerFunc

	// Backend returns the compiler backend.
	// Default: compiler.SolcBackend at the configured path
	Backend BackendFunc

	// Client connects to a manifest network.
	// Default: provider.RPCProvider with the configured deployer key
	Client ClientFunc

	// Devnet starts the chain used by --network devnet.
	// Default: provider.SimProvider
	Devnet DevnetFunc

	// Verifier returns a network's source verifier.
	// Default: verify.Etherscan at the network's block explorer
	Verifier VerifierFunc

	// Sleeper paces simulated sessions.
	// Default: a timer
	Sleeper simulate.Sleeper
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.NetworksLoader == nil {
		d.NetworksLoader = network.Load
	}
	if d.Logger == nil {
		d.Logger = defaultLogger
	}
	if d.Backend == nil {
		d.Backend = defaultBackend
	}
	if d.Client == nil {
		d.Client = defaultClient
	}
	if d.Devnet == nil {
		d.Devnet = defaultDevnet
	}
	if d.Verifier == nil {
		d.Verifier = defaultVerifier
	}
}

func defaultLogger(cfg config.LogConfig) (logger.Logger, error) {
	lvl, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	c := logger.Config{Level: lvl, Development: cfg.Development}

	return c.New()
}

func defaultBackend(cfg config.CompilerConfig) compiler.Backend {
	return compiler.SolcBackend{Path: cfg.SolcPath}
}

func clientOpts(cfg *config.Config, lggr logger.Logger) []evm.ClientOption {
	return []evm.ClientOption{
		evm.WithTickInterval(cfg.Deployer.TickInterval),
		evm.WithConfirmTimeout(cfg.Deployer.ConfirmTimeout),
		evm.WithLogger(lggr),
	}
}

func defaultClient(ctx context.Context, cfg *config.Config, n network.Network, lggr logger.Logger) (evm.DeployClient, io.Closer, error) {
	rpcs, err := n.EVMRPCs()
	if err != nil {
		return nil, nil, err
	}

	p := provider.NewRPCProvider(n.ChainSelector, provider.RPCProviderConfig{
		DeployerTransactorGen: provider.TransactorFromRaw(cfg.Deployer.DeployerKey),
		RPCs:                  rpcs,
		ClientOpts:            clientOpts(cfg, lggr),
		Logger:                lggr,
	})

	client, err := p.Initialize(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", n.Name(), err)
	}

	return client, p, nil
}

func defaultDevnet(ctx context.Context, cfg *config.Config, lggr logger.Logger) (evm.DeployClient, io.Closer, error) {
	p := provider.NewSimProvider(provider.SimSelector, provider.SimProviderConfig{
		ClientOpts: clientOpts(cfg, lggr),
	})

	client, err := p.Initialize(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start devnet: %w", err)
	}

	return client, p, nil
}

func defaultVerifier(cfg *config.Config, n network.Network, lggr logger.Logger) verify.Verifier {
	if n.BlockExplorer.URL == "" {
		return nil
	}

	apiKey := n.BlockExplorer.APIKey
	if apiKey == "" {
		apiKey = cfg.Verify.APIKey
	}

	opts := []verify.EtherscanOption{
		verify.WithPoll(cfg.Verify.PollInterval, cfg.Verify.PollAttempts),
		verify.WithLogger(lggr),
	}
	if id, err := n.ChainID(); err == nil {
		opts = append(opts, verify.WithChainID(id))
	}

	return verify.NewEtherscan(n.BlockExplorer.URL, apiKey, opts...)
}
