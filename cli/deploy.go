package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	chainsel "github.com/smartcontractkit/chain-selectors"
	"github.com/spf13/cobra"

	"github.com/protobase/launchpad/chain/evm"
	"github.com/protobase/launchpad/cli/flags"
	"github.com/protobase/launchpad/cli/text"
	"github.com/protobase/launchpad/config/network"
	"github.com/protobase/launchpad/datastore"
	"github.com/protobase/launchpad/deployer"
	"github.com/protobase/launchpad/facts"
	"github.com/protobase/launchpad/verify"
)

// DevnetNetwork selects the in-process development chain.
const DevnetNetwork = "devnet"

var (
	deployShort = "Compile and deploy a contract"

	deployLong = text.LongDesc(`
		Compiles a Solidity source and deploys the selected contract to a network of the
		networks manifest, using the configured deployer key.

		Progress is printed to stderr as it happens; the deployment result is printed to stdout
		as JSON. The deployment is verified on the network's block explorer when one is
		configured; a failed verification does not fail the deployment.

		Interrupting the command before the transaction is sent stops the deployment. After it
		was sent, interrupting abandons the deployment: the transaction hash is printed and the
		contract may still be created.

		Deployed contracts are recorded in the address book (datastore_file), keyed by chain,
		contract name and qualifier. Deploying the same key again replaces its record.
	`)

	deployExample = text.Examples(`
		# Deploy a contract taking one uint256 constructor argument to Sepolia
		launchpad deploy SimpleStorage.sol --network ethereum-testnet-sepolia --arg 42

		# Deploy to a mainnet of the networks manifest
		launchpad deploy SimpleStorage.sol --network ethereum-mainnet --arg 42 --allow-mainnet

		# Deploy to the in-process development chain
		launchpad deploy SimpleStorage.sol --network devnet --arg 42

		# Record a second instance in the address book under its own qualifier
		launchpad deploy SimpleStorage.sol --network ethereum-testnet-sepolia --arg 7 --qualifier canary --label team-a
	`)
)

type deployFlags struct {
	source        string
	network       string
	contract      string
	args          []string
	out           string
	qualifier     string
	labels        []string
	allowMainnet  bool
	confirmations uint64
	timeout       time.Duration
}

// newDeployCmd creates the "deploy" command.
func newDeployCmd(a *app) *cobra.Command {
	var (
		confirmations uint64
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:     "deploy <source.sol>",
		Short:   deployShort,
		Long:    deployLong,
		Example: deployExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := deployFlags{
				source:        args[0],
				network:       flags.MustString(cmd.Flags().GetString("network")),
				contract:      flags.MustString(cmd.Flags().GetString("contract")),
				args:          flags.MustStringArray(cmd.Flags().GetStringArray("arg")),
				out:           flags.MustString(cmd.Flags().GetString("out")),
				qualifier:     flags.MustString(cmd.Flags().GetString("qualifier")),
				labels:        flags.MustStringArray(cmd.Flags().GetStringArray("label")),
				allowMainnet:  flags.MustBool(cmd.Flags().GetBool("allow-mainnet")),
				confirmations: confirmations,
				timeout:       timeout,
			}

			return runDeploy(cmd, a, f)
		},
	}

	flags.Network(cmd)
	flags.Contract(cmd)
	flags.Args(cmd)
	flags.Output(cmd)
	cmd.Flags().String("qualifier", "", "Address book qualifier telling apart deployments of the same contract on one chain")
	cmd.Flags().StringArray("label", nil, "Address book label, repeatable")
	cmd.Flags().Bool("allow-mainnet", false, "Allow deploying to networks of type mainnet")
	cmd.Flags().Uint64Var(&confirmations, "confirmations", 0, "Confirmations to wait for, overriding the configuration")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up on the deployment after this long (0 waits indefinitely)")

	return cmd
}

func runDeploy(cmd *cobra.Command, a *app, f deployFlags) (err error) {
	ctx := cmd.Context()
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	// --- Load

	source, err := os.ReadFile(f.source)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	c, closeCompiler, err := a.newCompiler(ctx)
	if err != nil {
		return err
	}
	defer closeAll(&err, closeCompiler)

	client, verifier, closer, err := a.connect(ctx, f.network, f.allowMainnet)
	if err != nil {
		return err
	}
	defer closeAll(&err, closer.Close)

	bus := facts.NewBus()
	if err = printOutcome(cmd, bus); err != nil {
		return err
	}

	var rec *datastore.Recorder
	if a.cfg.DatastoreFile != "" {
		rec = datastore.NewRecorder(a.cfg.DatastoreFile, f.qualifier, f.labels, a.lggr.Named("datastore"))
		if err = rec.Subscribe(bus); err != nil {
			return err
		}
	}

	confirmations := a.cfg.Deployer.MinConfirmations
	if f.confirmations > 0 {
		confirmations = f.confirmations
	}

	opts := []deployer.Option{
		deployer.WithClient(client),
		deployer.WithFacts(bus),
		deployer.WithMetrics(a.metrics),
		deployer.WithLogger(a.lggr.Named("orchestrator")),
		deployer.WithMinConfirmations(confirmations),
	}
	if verifier != nil {
		opts = append(opts, deployer.WithVerifier(client.ChainSelector(), verifier))
	}

	// --- Execute

	o := deployer.New(c, opts...)
	s, err := o.Deploy(ctx, deployer.Request{
		Source:          string(source),
		ContractName:    f.contract,
		ConstructorArgs: constructorArgs(f.args),
		ChainSelector:   client.ChainSelector(),
	}, printEvents(cmd))
	if err != nil {
		return err
	}

	if err = writeJSON(cmd, f.out, s.Result()); err != nil {
		return err
	}

	if rec != nil {
		if rerr := rec.Err(); rerr != nil {
			return fmt.Errorf("deployment succeeded but was not recorded in %s: %w", a.cfg.DatastoreFile, rerr)
		}
	}

	return nil
}

// connect returns the client of the target network, its verifier if it has one, and the
// closer releasing the connection. Mainnets are only reachable when allowMainnet is set.
func (a *app) connect(ctx context.Context, target string, allowMainnet bool) (evm.DeployClient, verify.Verifier, io.Closer, error) {
	if target == DevnetNetwork {
		client, closer, err := a.deps.Devnet(ctx, a.cfg, a.lggr.Named("devnet"))
		if err != nil {
			return nil, nil, nil, err
		}

		return client, nil, closer, nil
	}

	nets, err := a.deps.NetworksLoader(a.cfg.NetworksFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load networks: %w", err)
	}

	deployable := nets
	if !allowMainnet {
		deployable = nets.FilterWith(network.TypesFilter(network.NetworkTypeTestnet))
	}

	n, err := resolveNetwork(deployable, target)
	if err != nil {
		if m, merr := resolveNetwork(nets, target); merr == nil {
			return nil, nil, nil, fmt.Errorf("%s is a %s network; pass --allow-mainnet to deploy to it", m.Name(), m.Type)
		}

		return nil, nil, nil, err
	}

	client, closer, err := a.deps.Client(ctx, a.cfg, n, a.lggr.Named("client"))
	if err != nil {
		return nil, nil, nil, err
	}

	return client, a.deps.Verifier(a.cfg, n, a.lggr.Named("verify")), closer, nil
}

// resolveNetwork finds target in the manifest, by chain selector or by chain name.
func resolveNetwork(nets *network.Config, target string) (network.Network, error) {
	if selector, err := strconv.ParseUint(target, 10, 64); err == nil {
		return nets.NetworkBySelector(selector)
	}

	for _, n := range nets.Networks() {
		if chain, ok := chainsel.ChainBySelector(n.ChainSelector); ok && chain.Name == target {
			return n, nil
		}
	}

	return network.Network{}, fmt.Errorf("network %q is not in the networks manifest (available: %s)", target, available(nets))
}

func available(nets *network.Config) string {
	selectors := nets.ChainSelectors()
	if len(selectors) == 0 {
		return "none"
	}

	names := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		names = append(names, evm.ChainName(sel))
	}

	return strings.Join(names, ", ")
}
