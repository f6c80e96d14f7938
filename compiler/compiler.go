// Package compiler turns Solidity source into a deployable artifact, or into diagnostics.
//
// The compiler version and optimizer settings are pinned and never negotiated per call, so the
// same source always yields byte-identical bytecode and an identically ordered ABI.
package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"

	"github.com/protobase/launchpad/pkg/logger"
)

const (
	// OptimizerRuns is the pinned optimizer setting.
	OptimizerRuns uint64 = 200
	// EVMVersion is the pinned target EVM version.
	EVMVersion = "cancun"
)

// PinnedVersion is the only solc version artifacts are produced with.
var PinnedVersion = semver.MustParse("0.8.24")

// CacheObserver is notified when a compilation is served from the artifact cache.
type CacheObserver interface {
	CompileCacheHit()
}

// Compiler compiles Solidity source with the pinned settings.
type Compiler struct {
	backend     Backend
	lggr        logger.Logger
	longVersion string
	cache       *Cache
	observer    CacheObserver
	group       singleflight.Group
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger.
func WithLogger(lggr logger.Logger) Option {
	return func(c *Compiler) { c.lggr = lggr }
}

// WithLongVersion records the full compiler version string (e.g. v0.8.24+commit.e11b9ed9) on
// produced artifacts. Block explorers need it to reproduce the build.
func WithLongVersion(v string) Option {
	return func(c *Compiler) { c.longVersion = v }
}

// WithCache memoises compilation outcomes.
func WithCache(cache *Cache) Option {
	return func(c *Compiler) { c.cache = cache }
}

// WithCacheObserver registers an observer for cache hits.
func WithCacheObserver(o CacheObserver) Option {
	return func(c *Compiler) { c.observer = o }
}

// New returns a Compiler backed by b.
func New(b Backend, opts ...Option) *Compiler {
	c := &Compiler{
		backend:     b,
		lggr:        logger.Nop(),
		longVersion: "v" + PinnedVersion.String(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Compile compiles source and selects its single concrete contract.
//
// When the diagnostics contain at least one error, the artifact is nil and the error is a
// *DiagnosticsError. Warnings alone do not fail the compilation. Any other error means the
// compiler could not be run at all.
func (c *Compiler) Compile(ctx context.Context, source string) (*Artifact, Diagnostics, error) {
	return c.CompileContract(ctx, source, "")
}

// CompileContract is like Compile but selects the contract called name. An empty name means
// the source must declare exactly one concrete contract.
func (c *Compiler) CompileContract(ctx context.Context, source, name string) (*Artifact, Diagnostics, error) {
	key := cacheKey(source, name)

	if out, ok := c.cache.get(key); ok {
		c.lggr.Debugw("Compilation served from cache", "contract", name)
		if c.observer != nil {
			c.observer.CompileCacheHit()
		}

		return out.result()
	}

	// The shared compile outlives any single caller; each caller only stops waiting on its own
	// cancellation.
	shareCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		out, err := c.compile(shareCtx, source, name)
		if err != nil {
			return nil, err
		}
		c.cache.put(key, out)

		return out, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("compile: %w", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, nil, res.Err
	}
	if res.Shared {
		c.lggr.Debugw("Compilation shared with a concurrent caller", "contract", name)
	}

	return res.Val.(*outcome).result()
}

// outcome is the cacheable result of one compilation.
type outcome struct {
	Artifact    *Artifact   `json:"artifact,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

func (o *outcome) result() (*Artifact, Diagnostics, error) {
	if o.Diagnostics.HasErrors() {
		return nil, o.Diagnostics, &DiagnosticsError{Diagnostics: o.Diagnostics}
	}

	return o.Artifact, o.Diagnostics, nil
}

func (c *Compiler) compile(ctx context.Context, source, name string) (*outcome, error) {
	if strings.TrimSpace(source) == "" {
		return &outcome{Diagnostics: Diagnostics{preflightError("source is empty")}}, nil
	}
	if ds := checkPragma(source); ds.HasErrors() {
		return &outcome{Diagnostics: ds}, nil
	}

	input, err := json.Marshal(newStandardInput(source))
	if err != nil {
		return nil, fmt.Errorf("encode compiler input: %w", err)
	}

	c.lggr.Infow("Compiling source", "version", PinnedVersion, "optimizerRuns", OptimizerRuns)

	raw, err := c.backend.CompileStandardJSON(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	var out standardOutput
	if err = json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode compiler output: %w", err)
	}

	ds := out.diagnostics()
	if ds.HasErrors() {
		return &outcome{Diagnostics: ds}, nil
	}

	selected, d, ok := selectContract(out.deployableContracts(), name)
	if !ok {
		return &outcome{Diagnostics: append(ds, d)}, nil
	}

	contract, found := out.Contracts[sourceFileName][selected]
	if !found {
		return &outcome{Diagnostics: append(ds, preflightError("compiler produced no output for contract %s", selected))}, nil
	}

	art, d, ok := c.newArtifact(selected, contract)
	if !ok {
		return &outcome{Diagnostics: append(ds, d)}, nil
	}

	return &outcome{Artifact: art, Diagnostics: ds}, nil
}

// selectContract applies the artifact selection rule: an explicitly named contract must be one
// of the candidates; without a name there must be exactly one candidate.
func selectContract(candidates []string, name string) (string, Diagnostic, bool) {
	if name != "" {
		if slices.Contains(candidates, name) {
			return name, Diagnostic{}, true
		}

		return "", preflightError("contract %q is not a deployable contract of the source (found: %s)",
			name, listNames(candidates)), false
	}

	switch len(candidates) {
	case 1:
		return candidates[0], Diagnostic{}, true
	case 0:
		return "", preflightError("source declares no deployable contract"), false
	default:
		return "", preflightError("source declares %d deployable contracts (%s); a contract name is required",
			len(candidates), listNames(candidates)), false
	}
}

func listNames(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	sorted := slices.Clone(names)
	slices.Sort(sorted)

	return strings.Join(sorted, ", ")
}

func (c *Compiler) newArtifact(name string, contract standardContract) (*Artifact, Diagnostic, bool) {
	object := strings.TrimPrefix(contract.EVM.Bytecode.Object, "0x")
	if object == "" {
		return nil, preflightError("contract %s has no bytecode", name), false
	}
	if strings.Contains(object, "__$") {
		return nil, preflightError("contract %s requires library linking, which is not supported", name), false
	}

	var entries []ABIEntry
	if err := json.Unmarshal(contract.ABI, &entries); err != nil {
		return nil, preflightError("contract %s has a malformed abi: %v", name, err), false
	}

	art := &Artifact{
		ContractName:    name,
		Bytecode:        "0x" + object,
		ABI:             entries,
		RawABI:          contract.ABI,
		CompilerVersion: c.longVersion,
		OptimizerRuns:   OptimizerRuns,
	}
	if _, err := art.ParsedABI(); err != nil {
		return nil, preflightError("%v", err), false
	}

	return art, Diagnostic{}, true
}
