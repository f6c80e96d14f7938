package compiler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const simpleStorageSource = `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

contract SimpleStorage {
    uint256 private storedValue;

    function retrieve() public view returns (uint256) {
        return storedValue;
    }
}
`

const retrieveABI = `[{"inputs":[],"name":"retrieve","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// MockBackend is a testify mock of Backend.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) CompileStandardJSON(ctx context.Context, input []byte) ([]byte, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

// fakeContract describes one contract in a synthesised solc output document.
type fakeContract struct {
	Name     string
	Kind     string
	Abstract bool
	ABI      string
	Bytecode string
}

// solcOutput builds a standard-JSON output document in the shape solc emits.
func solcOutput(t *testing.T, errs []standardError, contracts ...fakeContract) []byte {
	t.Helper()

	nodes := []map[string]any{{"nodeType": "PragmaDirective"}}
	compiled := map[string]any{}
	for _, c := range contracts {
		kind := c.Kind
		if kind == "" {
			kind = "contract"
		}
		nodes = append(nodes, map[string]any{
			"nodeType":     "ContractDefinition",
			"name":         c.Name,
			"contractKind": kind,
			"abstract":     c.Abstract,
		})

		abiJSON := c.ABI
		if abiJSON == "" {
			abiJSON = "[]"
		}
		compiled[c.Name] = map[string]any{
			"abi": json.RawMessage(abiJSON),
			"evm": map[string]any{"bytecode": map[string]any{"object": c.Bytecode}},
		}
	}

	doc := map[string]any{
		"sources": map[string]any{
			sourceFileName: map[string]any{"id": 0, "ast": map[string]any{"nodeType": "SourceUnit", "nodes": nodes}},
		},
	}
	if len(contracts) > 0 {
		doc["contracts"] = map[string]any{sourceFileName: compiled}
	}
	if len(errs) > 0 {
		doc["errors"] = errs
	}

	out, err := json.Marshal(doc)
	require.NoError(t, err)

	return out
}
