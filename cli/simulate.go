package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/protobase/launchpad/cli/flags"
	"github.com/protobase/launchpad/cli/text"
	"github.com/protobase/launchpad/deployer"
	"github.com/protobase/launchpad/facts"
	"github.com/protobase/launchpad/simulate"
)

var (
	simulateShort = "Simulate a deployment without a chain"

	simulateLong = text.LongDesc(`
		Replays a scripted deployment of a source, printing the same kind of progress and
		result as a real deployment. Nothing is compiled or sent: the transaction hash,
		contract address, block number and gas used are synthetic.

		A simulated deployment never fails on its own; only interrupting it stops it.
	`)

	simulateExample = text.Examples(`
		# Simulate a deployment to Sepolia with the built-in script
		launchpad simulate SimpleStorage.sol --network 16015286601757825753

		# Reproducible, instant replay of a custom script
		launchpad simulate SimpleStorage.sol --network ethereum-testnet-sepolia --script steps.toml --seed 7 --min-delay 0 --max-delay 0
	`)
)

type simulateFlags struct {
	source   string
	network  string
	contract string
	out      string
	script   string
	seed     uint64
}

// newSimulateCmd creates the "simulate" command.
func newSimulateCmd(a *app) *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:     "simulate <source.sol>",
		Short:   simulateShort,
		Long:    simulateLong,
		Example: simulateExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := simulateFlags{
				source:   args[0],
				network:  flags.MustString(cmd.Flags().GetString("network")),
				contract: flags.MustString(cmd.Flags().GetString("contract")),
				out:      flags.MustString(cmd.Flags().GetString("out")),
				script:   flags.MustString(cmd.Flags().GetString("script")),
				seed:     seed,
			}
			if cmd.Flags().Changed("min-delay") {
				a.cfg.Simulation.MinDelay = flags.MustDuration(cmd.Flags().GetDuration("min-delay"))
			}
			if cmd.Flags().Changed("max-delay") {
				a.cfg.Simulation.MaxDelay = flags.MustDuration(cmd.Flags().GetDuration("max-delay"))
			}

			return runSimulate(cmd, a, f)
		},
	}

	flags.Network(cmd)
	flags.Contract(cmd)
	flags.Output(cmd)
	cmd.Flags().String("script", "", "TOML script replacing the built-in steps, overriding the configuration")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed of the synthetic identifiers and delays (0 picks a random one)")
	cmd.Flags().Duration("min-delay", simulate.DefaultMinDelay, "Shortest delay before a step, overriding the configuration")
	cmd.Flags().Duration("max-delay", simulate.DefaultMaxDelay, "Longest delay before a step, overriding the configuration")

	return cmd
}

func runSimulate(cmd *cobra.Command, a *app, f simulateFlags) error {
	source, err := os.ReadFile(f.source)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	selector, err := a.resolveSelector(f.network)
	if err != nil {
		return err
	}

	bus := facts.NewBus()
	if err = printOutcome(cmd, bus); err != nil {
		return err
	}

	opts := []simulate.Option{
		simulate.WithDelays(a.cfg.Simulation.MinDelay, a.cfg.Simulation.MaxDelay),
		simulate.WithFacts(bus),
		simulate.WithMetrics(a.metrics),
		simulate.WithLogger(a.lggr.Named("simulate")),
	}

	scriptPath := a.cfg.Simulation.ScriptPath
	if f.script != "" {
		scriptPath = f.script
	}
	if scriptPath != "" {
		script, serr := simulate.LoadScript(scriptPath)
		if serr != nil {
			return serr
		}
		opts = append(opts, simulate.WithScript(script))
	}
	if f.seed != 0 {
		opts = append(opts, simulate.WithSeed(f.seed))
	}
	if a.deps.Sleeper != nil {
		opts = append(opts, simulate.WithSleeper(a.deps.Sleeper))
	}

	engine, err := simulate.New(opts...)
	if err != nil {
		return err
	}

	s, err := engine.Deploy(cmd.Context(), deployer.Request{
		Source:        string(source),
		ContractName:  f.contract,
		ChainSelector: selector,
	}, printEvents(cmd))
	if err != nil {
		return err
	}

	return writeJSON(cmd, f.out, s.Result())
}

// resolveSelector accepts a chain selector as is, and looks chain names up in the networks
// manifest.
func (a *app) resolveSelector(target string) (uint64, error) {
	if selector, err := strconv.ParseUint(target, 10, 64); err == nil {
		return selector, nil
	}

	nets, err := a.deps.NetworksLoader(a.cfg.NetworksFile)
	if err != nil {
		return 0, fmt.Errorf("failed to load networks: %w", err)
	}

	n, err := resolveNetwork(nets, target)
	if err != nil {
		return 0, err
	}

	return n.ChainSelector, nil
}
