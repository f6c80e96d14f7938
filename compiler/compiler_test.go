package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/protobase/launchpad/pkg/logger"
)

func Test_Compile_Success(t *testing.T) {
	t.Parallel()

	backend := &MockBackend{}
	backend.On("CompileStandardJSON", mock.Anything, mock.Anything).Return(
		solcOutput(t, nil, fakeContract{Name: "SimpleStorage", ABI: retrieveABI, Bytecode: "6080604052"}), nil,
	).Once()

	c := New(backend, WithLogger(logger.Test(t)), WithLongVersion("v0.8.24+commit.e11b9ed9"))
	art, diags, err := c.Compile(t.Context(), simpleStorageSource)
	require.NoError(t, err)
	require.NotNil(t, art)

	assert.Empty(t, diags)
	assert.Equal(t, "SimpleStorage", art.ContractName)
	assert.Equal(t, "0x6080604052", art.Bytecode)
	assert.Equal(t, "v0.8.24+commit.e11b9ed9", art.CompilerVersion)
	assert.Equal(t, OptimizerRuns, art.OptimizerRuns)
	require.Len(t, art.ABI, 1)
	assert.Equal(t, "retrieve", art.ABI[0].Name)
	assert.Equal(t, "function", art.ABI[0].Kind)
	assert.Equal(t, "view", art.ABI[0].StateMutability)
	assert.Equal(t, []string{"retrieve"}, art.Functions())

	code, err := art.BytecodeBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, code)

	parsed, err := art.ParsedABI()
	require.NoError(t, err)
	assert.Contains(t, parsed.Methods, "retrieve")

	backend.AssertExpectations(t)
}

func Test_Compile_SendsPinnedSettings(t *testing.T) {
	t.Parallel()

	backend := &MockBackend{}
	backend.On("CompileStandardJSON", mock.Anything, mock.MatchedBy(func(input []byte) bool {
		var in standardInput
		if err := json.Unmarshal(input, &in); err != nil {
			return false
		}

		return in.Language == "Solidity" &&
			in.Settings.Optimizer.Enabled &&
			in.Settings.Optimizer.Runs == 200 &&
			in.Settings.EVMVersion == EVMVersion &&
			in.Sources[sourceFileName].Content == simpleStorageSource
	})).Return(
		solcOutput(t, nil, fakeContract{Name: "SimpleStorage", ABI: retrieveABI, Bytecode: "60"}), nil,
	).Once()

	_, _, err := New(backend).Compile(t.Context(), simpleStorageSource)
	require.NoError(t, err)
	backend.AssertExpectations(t)
}

func Test_Compile_InvalidSyntaxFailsClosed(t *testing.T) {
	t.Parallel()

	backend := &MockBackend{}
	backend.On("CompileStandardJSON", mock.Anything, mock.Anything).Return(
		solcOutput(t, []standardError{
			{Severity: "warning", Type: "Warning", Message: "SPDX license identifier not provided in source file."},
			{Severity: "error", Type: "ParserError", Message: "Expected pragma, import directive or contract/interface/library/struct/enum/constant/function/error definition."},
		}), nil,
	)

	art, diags, err := New(backend).Compile(t.Context(), "invalid-syntax {")
	require.Error(t, err)
	assert.Nil(t, art)

	var derr *DiagnosticsError
	require.ErrorAs(t, err, &derr)
	require.GreaterOrEqual(t, len(diags), 1)
	assert.True(t, diags.HasErrors())
	assert.Len(t, diags.Errors(), 1)
	assert.Len(t, diags.Warnings(), 1)
	assert.Equal(t, SeverityError, diags.Errors()[0].Severity)
	assert.Contains(t, err.Error(), "ParserError")
}

func Test_Compile_WarningsOnlyReturnsArtifact(t *testing.T) {
	t.Parallel()

	backend := &MockBackend{}
	backend.On("CompileStandardJSON", mock.Anything, mock.Anything).Return(
		solcOutput(t,
			[]standardError{{Severity: "warning", Type: "Warning", Message: "Function state mutability can be restricted to pure"}},
			fakeContract{Name: "SimpleStorage", ABI: retrieveABI, Bytecode: "6080"},
		), nil,
	)

	art, diags, err := New(backend).Compile(t.Context(), simpleStorageSource)
	require.NoError(t, err)
	require.NotNil(t, art)
	require.Len(t, diags, 1)
	assert.Equal(t, SeverityWarning, diags[0].Severity)
}

func Test_Compile_Preflight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{
			name:    "empty source",
			source:  "  \n\t",
			wantMsg: "source is empty",
		},
		{
			name:    "pragma excludes pinned version",
			source:  "pragma solidity ^0.7.6;\ncontract A {}",
			wantMsg: "requires solidity ^0.7.6",
		},
		{
			name:    "exact older pragma",
			source:  "pragma solidity 0.8.19;\ncontract A {}",
			wantMsg: "pinned compiler is 0.8.24",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// The backend must never be reached.
			backend := &MockBackend{}

			art, diags, err := New(backend).Compile(t.Context(), tt.source)
			require.Error(t, err)
			assert.Nil(t, art)
			require.Len(t, diags, 1)
			assert.Equal(t, "PreflightError", diags[0].Type)
			assert.Contains(t, diags[0].Message, tt.wantMsg)
			backend.AssertNotCalled(t, "CompileStandardJSON", mock.Anything, mock.Anything)
		})
	}
}

func Test_Compile_PragmaInCommentsIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
	}{
		{
			name:   "block comment",
			source: "/*\n pragma solidity ^0.7.0;\n*/\npragma solidity ^0.8.20;\ncontract A {}",
		},
		{
			name:   "line comment",
			source: "// pragma solidity 0.6.12;\npragma solidity ^0.8.20;\ncontract A {}",
		},
		{
			name:   "pragma after inline block comment",
			source: "/* old: pragma solidity ^0.7.0; */ pragma solidity ^0.8.20;\ncontract A {}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Empty(t, checkPragma(tt.source))

			backend := &MockBackend{}
			backend.On("CompileStandardJSON", mock.Anything, mock.Anything).Return(
				solcOutput(t, nil, fakeContract{Name: "A", ABI: retrieveABI, Bytecode: "60aa"}), nil,
			).Once()

			art, _, err := New(backend).Compile(t.Context(), tt.source)
			require.NoError(t, err)
			assert.Equal(t, "A", art.ContractName)
			backend.AssertExpectations(t)
		})
	}
}

func Test_Compile_SelectionRule(t *testing.T) {
	t.Parallel()

	contracts := []fakeContract{
		{Name: "Token", ABI: retrieveABI, Bytecode: "60aa"},
		{Name: "Vault", ABI: retrieveABI, Bytecode: "60bb"},
		{Name: "SafeMath", Kind: "library", Bytecode: "60cc"},
		{Name: "IVault", Kind: "interface"},
		{Name: "Base", Abstract: true},
	}

	tests := []struct {
		name         string
		contracts    []fakeContract
		contractName string
		want         string
		wantMsg      string
	}{
		{
			name:      "single concrete contract beside library and interface",
			contracts: []fakeContract{contracts[0], contracts[2], contracts[3], contracts[4]},
			want:      "Token",
		},
		{
			name:      "ambiguous without a name",
			contracts: contracts,
			wantMsg:   "2 deployable contracts (Token, Vault)",
		},
		{
			name:         "explicit name picks the second contract",
			contracts:    contracts,
			contractName: "Vault",
			want:         "Vault",
		},
		{
			name:         "explicit name cannot select a library",
			contracts:    contracts,
			contractName: "SafeMath",
			wantMsg:      `contract "SafeMath" is not a deployable contract`,
		},
		{
			name:      "only interfaces",
			contracts: []fakeContract{contracts[3]},
			wantMsg:   "no deployable contract",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := &MockBackend{}
			backend.On("CompileStandardJSON", mock.Anything, mock.Anything).
				Return(solcOutput(t, nil, tt.contracts...), nil)

			art, diags, err := New(backend).CompileContract(t.Context(), "contract X {}", tt.contractName)
			if tt.wantMsg != "" {
				require.Error(t, err)
				assert.Nil(t, art)
				assert.Contains(t, diags.Summary(), tt.wantMsg)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, art.ContractName)
		})
	}
}

func Test_Compile_RejectsUnlinkedLibraries(t *testing.T) {
	t.Parallel()

	backend := &MockBackend{}
	backend.On("CompileStandardJSON", mock.Anything, mock.Anything).Return(
		solcOutput(t, nil, fakeContract{Name: "Uses", ABI: "[]", Bytecode: "6080__$3f1c2d$__6000"}), nil,
	)

	_, diags, err := New(backend).Compile(t.Context(), "contract Uses {}")
	require.Error(t, err)
	assert.Contains(t, diags.Summary(), "library linking")
}

func Test_Compile_BackendFailure(t *testing.T) {
	t.Parallel()

	backend := &MockBackend{}
	backend.On("CompileStandardJSON", mock.Anything, mock.Anything).
		Return(nil, errors.New("exec: \"solc\": executable file not found in $PATH"))

	art, diags, err := New(backend).Compile(t.Context(), simpleStorageSource)
	require.ErrorContains(t, err, "executable file not found")
	assert.Nil(t, art)
	assert.Nil(t, diags)

	var derr *DiagnosticsError
	assert.False(t, errors.As(err, &derr))
}

func Test_Compile_Deterministic(t *testing.T) {
	t.Parallel()

	backend := &MockBackend{}
	backend.On("CompileStandardJSON", mock.Anything, mock.Anything).Return(
		solcOutput(t, nil, fakeContract{Name: "SimpleStorage", ABI: retrieveABI, Bytecode: "6080604052"}), nil,
	)

	c := New(backend)
	first, _, err := c.Compile(t.Context(), simpleStorageSource)
	require.NoError(t, err)
	second, _, err := c.Compile(t.Context(), simpleStorageSource)
	require.NoError(t, err)

	assert.Equal(t, first.Bytecode, second.Bytecode)
	assert.Equal(t, first.ABI, second.ABI)
	assert.Equal(t, first.Hash(), second.Hash())

	// The compiler input document itself must be byte-identical across calls.
	calls := backend.Calls
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].Arguments.Get(1), calls[1].Arguments.Get(1))
}

type countingObserver struct {
	mu   sync.Mutex
	hits int
}

func (o *countingObserver) CompileCacheHit() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits++
}

func Test_Compile_CacheServesRepeatedSource(t *testing.T) {
	t.Parallel()

	cache, err := NewCache(context.Background(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	backend := &MockBackend{}
	backend.On("CompileStandardJSON", mock.Anything, mock.Anything).Return(
		solcOutput(t, nil, fakeContract{Name: "SimpleStorage", ABI: retrieveABI, Bytecode: "6080604052"}), nil,
	).Once()

	obs := &countingObserver{}
	c := New(backend, WithCache(cache), WithCacheObserver(obs))

	first, _, err := c.Compile(t.Context(), simpleStorageSource)
	require.NoError(t, err)
	second, _, err := c.Compile(t.Context(), simpleStorageSource)
	require.NoError(t, err)

	assert.Equal(t, first.Bytecode, second.Bytecode)
	assert.Equal(t, first.ABI, second.ABI)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1, obs.hits)
	backend.AssertExpectations(t)
}

func Test_Compile_CacheKeepsFailures(t *testing.T) {
	t.Parallel()

	cache, err := NewCache(context.Background(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	backend := &MockBackend{}
	backend.On("CompileStandardJSON", mock.Anything, mock.Anything).Return(
		solcOutput(t, []standardError{{Severity: "error", Type: "ParserError", Message: "Expected ';'"}}), nil,
	).Once()

	c := New(backend, WithCache(cache))
	for range 2 {
		art, diags, err := c.Compile(t.Context(), "contract A { uint x }")
		require.Error(t, err)
		assert.Nil(t, art)
		assert.True(t, diags.HasErrors())
	}
	backend.AssertExpectations(t)
}

// blockingBackend holds every compilation until released or until its context ends.
type blockingBackend struct {
	output  []byte
	started chan struct{}
	release chan struct{}

	mu   sync.Mutex
	ctxs []context.Context
}

func newBlockingBackend(output []byte) *blockingBackend {
	return &blockingBackend{output: output, started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingBackend) CompileStandardJSON(ctx context.Context, _ []byte) ([]byte, error) {
	b.mu.Lock()
	b.ctxs = append(b.ctxs, ctx)
	b.mu.Unlock()
	b.started <- struct{}{}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return b.output, nil
	}
}

func (b *blockingBackend) firstCtx() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.ctxs[0]
}

func Test_Compile_SharedCompileSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	backend := newBlockingBackend(
		solcOutput(t, nil, fakeContract{Name: "SimpleStorage", ABI: retrieveABI, Bytecode: "6080604052"}),
	)
	c := New(backend, WithLogger(logger.Test(t)))

	ctxA, cancelA := context.WithCancel(t.Context())
	errA := make(chan error, 1)
	go func() {
		_, _, err := c.Compile(ctxA, simpleStorageSource)
		errA <- err
	}()
	<-backend.started

	type result struct {
		art *Artifact
		err error
	}
	resB := make(chan result, 1)
	go func() {
		art, _, err := c.Compile(context.Background(), simpleStorageSource)
		resB <- result{art: art, err: err}
	}()

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)
	require.NoError(t, backend.firstCtx().Err(), "the running compile must not inherit a caller's cancellation")

	close(backend.release)
	got := <-resB
	require.NoError(t, got.err)
	require.NotNil(t, got.art)
	assert.Equal(t, "SimpleStorage", got.art.ContractName)
}

func Test_parseSolcVersion(t *testing.T) {
	t.Parallel()

	v, long, err := parseSolcVersion("solc, the solidity compiler commandline interface\nVersion: 0.8.24+commit.e11b9ed9.Linux.g++\n")
	require.NoError(t, err)
	assert.Equal(t, "0.8.24", v.String())
	assert.Equal(t, "v0.8.24+commit.e11b9ed9", long)
	require.NoError(t, CheckVersion(v))

	v, _, err = parseSolcVersion("Version: 0.8.19+commit.7dd6d404.Darwin.appleclang")
	require.NoError(t, err)
	require.ErrorIs(t, CheckVersion(v), ErrVersionMismatch)

	_, _, err = parseSolcVersion("garbage")
	require.Error(t, err)
}
