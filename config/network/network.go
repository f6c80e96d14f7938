// Package network describes the chains launchpad can deploy to, loaded from a YAML manifest.
package network

import (
	"errors"
	"fmt"

	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/protobase/launchpad/chain/evm"
)

// NetworkType represents the type of network, which can either be mainnet or testnet.
type NetworkType string

const (
	NetworkTypeMainnet NetworkType = "mainnet"
	NetworkTypeTestnet NetworkType = "testnet"
)

// Network represents a network configuration.
type Network struct {
	Type          NetworkType   `yaml:"type"`
	ChainSelector uint64        `yaml:"chain_selector"`
	BlockExplorer BlockExplorer `yaml:"block_explorer"`
	RPCs          []RPC         `yaml:"rpcs"`
}

// ChainFamily returns the family of the network based on its chain selector.
func (n *Network) ChainFamily() (string, error) {
	return chainsel.GetSelectorFamily(n.ChainSelector)
}

// ChainID returns the chain ID as a string based on the chain selector.
func (n *Network) ChainID() (string, error) {
	return chainsel.GetChainIDFromSelector(n.ChainSelector)
}

// Name returns the human readable chain name, "<name> (<selector>)".
func (n *Network) Name() string {
	return evm.ChainName(n.ChainSelector)
}

// Validate validates the network configuration to ensure that all required fields are set.
func (n *Network) Validate() error {
	if n.Type == "" {
		return errors.New("type is required")
	}

	if n.ChainSelector == 0 {
		return errors.New("chain selector is required")
	}

	family, err := n.ChainFamily()
	if err != nil {
		return fmt.Errorf("unknown chain selector: %w", err)
	}
	if family != chainsel.FamilyEVM {
		return fmt.Errorf("unsupported chain family %s", family)
	}

	if len(n.RPCs) == 0 {
		return errors.New("at least one RPC is required")
	}

	for _, rpc := range n.RPCs {
		if _, err := rpc.ToEVM(); err != nil {
			return err
		}
	}

	return nil
}

// EVMRPCs converts the RPCs into the form the EVM clients dial, preserving order. The first RPC
// is the primary; the rest are backups.
func (n *Network) EVMRPCs() ([]evm.RPC, error) {
	out := make([]evm.RPC, 0, len(n.RPCs))
	for _, rpc := range n.RPCs {
		r, err := rpc.ToEVM()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, nil
}

// RPC represents an RPC configuration in the flattened structure
type RPC struct {
	RPCName            string `yaml:"rpc_name"`
	PreferredURLScheme string `yaml:"preferred_url_scheme"`
	HTTPURL            string `yaml:"http_url"`
	WSURL              string `yaml:"ws_url"`
}

// ToEVM converts the RPC, rejecting an unknown URL scheme preference or an RPC without a
// usable URL.
func (rpc *RPC) ToEVM() (evm.RPC, error) {
	pref, err := evm.URLSchemePreferenceFromString(rpc.PreferredURLScheme)
	if err != nil {
		return evm.RPC{}, fmt.Errorf("rpc %s: %w", rpc.RPCName, err)
	}

	r := evm.RPC{
		Name:               rpc.RPCName,
		WSURL:              rpc.WSURL,
		HTTPURL:            rpc.HTTPURL,
		PreferredURLScheme: pref,
	}
	if _, err = r.ToEndpoint(); err != nil {
		return evm.RPC{}, err
	}

	return r, nil
}

// BlockExplorer represents a block explorer configuration in the flattened structure. URL is the
// explorer's API endpoint, for example https://api-sepolia.etherscan.io/api.
type BlockExplorer struct {
	Type   string `yaml:"type"`
	APIKey string `yaml:"api_key"`
	URL    string `yaml:"url"`
}
