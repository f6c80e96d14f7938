// Package cli implements the launchpad command line: compiling Solidity sources, deploying them
// to a configured network, and replaying simulated deployments.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/protobase/launchpad/cli/text"
	"github.com/protobase/launchpad/compiler"
	"github.com/protobase/launchpad/config"
	"github.com/protobase/launchpad/metrics"
	"github.com/protobase/launchpad/pkg/logger"
)

var (
	rootShort = "Compile and deploy Solidity contracts"

	rootLong = text.LongDesc(`
		launchpad compiles a Solidity source with a pinned compiler, deploys the resulting
		contract to an EVM network and verifies its source on the network's block explorer.

		Every deployment reports its progress as it happens. A deployment can also be simulated
		offline, producing the same progress and result without touching a chain.
	`)
)

// app is the state shared by the commands of one invocation.
type app struct {
	deps Deps

	configPath  string
	logLevel    string
	metricsFile string

	cfg      *config.Config
	lggr     logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Pipeline
}

// NewRootCommand returns the launchpad command with all subcommands.
func NewRootCommand(deps Deps) *cobra.Command {
	deps.applyDefaults()
	a := &app{deps: deps}

	cmd := &cobra.Command{
		Use:               "launchpad",
		Short:             rootShort,
		Long:              rootLong,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "launchpad.yaml", "Configuration file; missing files fall back to the environment")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level, overriding the configuration (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file on exit")

	cmd.AddCommand(
		newCompileCmd(a),
		newDeployCmd(a),
		newSimulateCmd(a),
		newAddressesCmd(a),
	)

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.deps.ConfigLoader(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	lggr, err := a.deps.Logger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.NewPipeline(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	a.cfg = cfg
	a.lggr = lggr.Named(cmd.Name())
	a.registry = registry
	a.metrics = m

	return nil
}

func (a *app) teardown() error {
	if a.lggr != nil {
		_ = a.lggr.Sync()
	}
	if a.metricsFile == "" || a.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", a.metricsFile, err)
	}

	return nil
}

// versioned is implemented by backends that can report the compiler version they run.
type versioned interface {
	Version(ctx context.Context) (*semver.Version, string, error)
}

// newCompiler returns the compiler for this invocation and a function releasing its cache.
func (a *app) newCompiler(ctx context.Context) (*compiler.Compiler, func() error, error) {
	backend := a.deps.Backend(a.cfg.Compiler)
	opts := []compiler.Option{
		compiler.WithLogger(a.lggr.Named("compiler")),
		compiler.WithCacheObserver(a.metrics),
	}

	if vb, ok := backend.(versioned); ok {
		v, long, err := vb.Version(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to determine compiler version: %w", err)
		}
		if err = compiler.CheckVersion(v); err != nil {
			return nil, nil, err
		}
		opts = append(opts, compiler.WithLongVersion(long))
	}

	closeFn := func() error { return nil }
	if ttl := a.cfg.Compiler.CacheTTL; ttl > 0 {
		cache, err := compiler.NewCache(ctx, ttl)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, compiler.WithCache(cache))
		closeFn = cache.Close
	}

	return compiler.New(backend, opts...), closeFn, nil
}

// closeAll runs every close function and joins their errors into err.
func closeAll(err *error, fns ...func() error) {
	for _, fn := range fns {
		*err = errors.Join(*err, fn())
	}
}
