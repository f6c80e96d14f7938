package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Backend runs the Solidity compiler on a standard-JSON input document and returns the
// standard-JSON output document.
type Backend interface {
	CompileStandardJSON(ctx context.Context, input []byte) ([]byte, error)
}

// SolcBackend invokes a local solc binary in --standard-json mode.
type SolcBackend struct {
	// Path is the solc executable. Defaults to "solc" looked up in PATH.
	Path string
}

var _ Backend = SolcBackend{}

func (b SolcBackend) path() string {
	if b.Path == "" {
		return "solc"
	}

	return b.Path
}

// CompileStandardJSON pipes input to `solc --standard-json`. Compilation errors are reported
// inside the output document; a non-nil error means the binary itself could not run.
func (b SolcBackend) CompileStandardJSON(ctx context.Context, input []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, b.path(), "--standard-json") //nolint:gosec // path comes from operator configuration
	cmd.Stdin = bytes.NewReader(input)

	var outBuffer, errBuffer bytes.Buffer
	cmd.Stdout = &outBuffer
	cmd.Stderr = &errBuffer

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s --standard-json: %w: %s", b.path(), err, strings.TrimSpace(errBuffer.String()))
	}

	return outBuffer.Bytes(), nil
}

var solcVersionRe = regexp.MustCompile(`Version:\s*(\d+\.\d+\.\d+)(\+commit\.[0-9a-f]+)?`)

// Version runs `solc --version` and returns the semantic version and the long form used by
// block explorers (e.g. v0.8.24+commit.e11b9ed9).
func (b SolcBackend) Version(ctx context.Context) (*semver.Version, string, error) {
	out, err := exec.CommandContext(ctx, b.path(), "--version").Output() //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, "", fmt.Errorf("run %s --version: %w", b.path(), err)
	}

	return parseSolcVersion(string(out))
}

func parseSolcVersion(out string) (*semver.Version, string, error) {
	m := solcVersionRe.FindStringSubmatch(out)
	if m == nil {
		return nil, "", fmt.Errorf("unrecognised solc version output: %q", strings.TrimSpace(out))
	}

	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, "", fmt.Errorf("parse solc version %q: %w", m[1], err)
	}

	return v, "v" + m[1] + m[2], nil
}

// ErrVersionMismatch is returned by CheckVersion when the installed compiler is not the pinned
// one.
var ErrVersionMismatch = errors.New("solc version does not match the pinned version")

// CheckVersion verifies that got equals the pinned compiler version.
func CheckVersion(got *semver.Version) error {
	if got == nil || !got.Equal(PinnedVersion) {
		return fmt.Errorf("%w: want %s, got %v", ErrVersionMismatch, PinnedVersion, got)
	}

	return nil
}

// sourceFileName is the virtual file name the source is compiled as.
const sourceFileName = "Contract.sol"

type standardInput struct {
	Language string                         `json:"language"`
	Sources  map[string]standardInputSource `json:"sources"`
	Settings standardSettings               `json:"settings"`
}

type standardInputSource struct {
	Content string `json:"content"`
}

type standardSettings struct {
	Optimizer       optimizerSettings              `json:"optimizer"`
	EVMVersion      string                         `json:"evmVersion"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

type optimizerSettings struct {
	Enabled bool   `json:"enabled"`
	Runs    uint64 `json:"runs"`
}

func newStandardInput(source string) standardInput {
	return standardInput{
		Language: "Solidity",
		Sources: map[string]standardInputSource{
			sourceFileName: {Content: source},
		},
		Settings: standardSettings{
			Optimizer:  optimizerSettings{Enabled: true, Runs: OptimizerRuns},
			EVMVersion: EVMVersion,
			OutputSelection: map[string]map[string][]string{
				"*": {
					"*": {"abi", "evm.bytecode.object"},
					"":  {"ast"},
				},
			},
		},
	}
}

type standardOutput struct {
	Errors    []standardError                       `json:"errors"`
	Sources   map[string]standardOutputSource       `json:"sources"`
	Contracts map[string]map[string]standardContract `json:"contracts"`
}

type standardError struct {
	Severity         string `json:"severity"`
	Type             string `json:"type"`
	Message          string `json:"message"`
	FormattedMessage string `json:"formattedMessage"`
}

type standardOutputSource struct {
	AST struct {
		Nodes []astNode `json:"nodes"`
	} `json:"ast"`
}

type astNode struct {
	NodeType     string `json:"nodeType"`
	Name         string `json:"name"`
	ContractKind string `json:"contractKind"`
	Abstract     bool   `json:"abstract"`
}

type standardContract struct {
	ABI json.RawMessage `json:"abi"`
	EVM struct {
		Bytecode struct {
			Object string `json:"object"`
		} `json:"bytecode"`
	} `json:"evm"`
}

func (o standardOutput) diagnostics() Diagnostics {
	ds := make(Diagnostics, 0, len(o.Errors))
	for _, e := range o.Errors {
		ds = append(ds, Diagnostic{
			Severity:  Severity(strings.ToLower(e.Severity)),
			Type:      e.Type,
			Message:   e.Message,
			Formatted: e.FormattedMessage,
		})
	}

	return ds
}

// deployableContracts returns the names of the concrete contracts declared in the source, in
// declaration order. Libraries, interfaces and abstract contracts are excluded.
func (o standardOutput) deployableContracts() []string {
	var names []string
	for _, n := range o.Sources[sourceFileName].AST.Nodes {
		if n.NodeType == "ContractDefinition" && n.ContractKind == "contract" && !n.Abstract {
			names = append(names, n.Name)
		}
	}

	return names
}
