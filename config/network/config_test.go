package network

import (
	"path/filepath"
	"testing"

	chainsel "github.com/smartcontractkit/chain-selectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var (
	sepolia = Network{
		Type:          NetworkTypeTestnet,
		ChainSelector: chainsel.ETHEREUM_TESTNET_SEPOLIA.Selector,
		BlockExplorer: BlockExplorer{
			Type:   "Etherscan",
			APIKey: "sepolia_key",
			URL:    "https://api-sepolia.etherscan.io/api",
		},
		RPCs: []RPC{
			{
				RPCName:            "primary",
				PreferredURLScheme: "http",
				HTTPURL:            "https://sepolia.primary.example",
				WSURL:              "wss://sepolia.primary.example",
			},
			{
				RPCName: "backup",
				HTTPURL: "https://sepolia.backup.example",
			},
		},
	}

	mainnet = Network{
		Type:          NetworkTypeMainnet,
		ChainSelector: chainsel.ETHEREUM_MAINNET.Selector,
		RPCs: []RPC{
			{RPCName: "devnet", PreferredURLScheme: "ws", WSURL: "ws://127.0.0.1:8546"},
		},
	}
)

func Test_Config_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    *Config
		wantErr string
	}{
		{
			name: "valid config",
			give: NewConfig([]Network{sepolia, mainnet}),
		},
		{
			name: "invalid config",
			give: NewConfig([]Network{
				{
					Type:          NetworkTypeMainnet,
					ChainSelector: chainsel.ETHEREUM_MAINNET.Selector,
				},
			}),
			wantErr: "network 5009297550715157269: at least one RPC is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.give.Validate()
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func Test_Config_UnmarshalYAML(t *testing.T) {
	t.Parallel()

	give := `
networks:
  - type: mainnet
    chain_selector: 5009297550715157269
    rpcs:
      - rpc_name: devnet
        preferred_url_scheme: ws
        ws_url: ws://127.0.0.1:8546
`

	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(give), &cfg))

	assert.Equal(t, Config{
		networks: map[uint64]Network{mainnet.ChainSelector: mainnet},
	}, cfg)

	err := yaml.Unmarshal([]byte("invalid"), &cfg)
	require.Error(t, err)
}

func Test_Config_NetworkBySelector(t *testing.T) {
	t.Parallel()

	cfg := NewConfig([]Network{sepolia})

	tests := []struct {
		name         string
		giveSelector uint64
		want         Network
		wantErr      string
	}{
		{
			name:         "valid selector",
			giveSelector: sepolia.ChainSelector,
			want:         sepolia,
		},
		{
			name:         "invalid selector",
			giveSelector: 2,
			wantErr:      "network with selector 2 not found in configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := cfg.NetworkBySelector(tt.giveSelector)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func Test_Config_OrderedAccessors(t *testing.T) {
	t.Parallel()

	cfg := NewConfig([]Network{sepolia, {ChainSelector: 2}, {ChainSelector: 1}})

	assert.Equal(t, []uint64{1, 2, sepolia.ChainSelector}, cfg.ChainSelectors())

	networks := cfg.Networks()
	require.Len(t, networks, 3)
	assert.Equal(t, uint64(1), networks[0].ChainSelector)
	assert.Equal(t, sepolia, networks[2])
}

func Test_Config_Merge(t *testing.T) {
	t.Parallel()

	cfg := NewConfig([]Network{{ChainSelector: 1}})
	cfg.Merge(NewConfig([]Network{{ChainSelector: 2}}))

	assert.Equal(t, &Config{
		networks: map[uint64]Network{
			1: {ChainSelector: 1},
			2: {ChainSelector: 2},
		},
	}, cfg)
}

func Test_Config_FilterWith(t *testing.T) {
	t.Parallel()

	cfg := NewConfig([]Network{sepolia, mainnet})

	tests := []struct {
		name        string
		giveFilters []NetworkFilter
		want        *Config
	}{
		{
			name:        "testnets only",
			giveFilters: []NetworkFilter{TypesFilter(NetworkTypeTestnet)},
			want:        NewConfig([]Network{sepolia}),
		},
		{
			name:        "all types",
			giveFilters: []NetworkFilter{TypesFilter(NetworkTypeMainnet, NetworkTypeTestnet)},
			want:        NewConfig([]Network{sepolia, mainnet}),
		},
		{
			name: "no filters",
			want: NewConfig([]Network{sepolia, mainnet}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, cfg.FilterWith(tt.giveFilters...))
		})
	}
}

func Test_Load(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		givePaths []string
		want      *Config
		wantErr   string
	}{
		{
			name:      "single file",
			givePaths: []string{filepath.Join("testdata", "networks.yaml")},
			want:      NewConfig([]Network{sepolia, mainnet}),
		},
		{
			name: "later file overrides",
			givePaths: []string{
				filepath.Join("testdata", "networks.yaml"),
				filepath.Join("testdata", "override.yaml"),
			},
			want: NewConfig([]Network{sepolia, {
				Type:          NetworkTypeMainnet,
				ChainSelector: chainsel.ETHEREUM_MAINNET.Selector,
				RPCs:          []RPC{{RPCName: "local", HTTPURL: "http://127.0.0.1:8545"}},
			}}),
		},
		{
			name:      "missing file",
			givePaths: []string{filepath.Join("testdata", "missing.yaml")},
			wantErr:   "failed to read networks file",
		},
		{
			name:      "invalid network",
			givePaths: []string{filepath.Join("testdata", "invalid.yaml")},
			wantErr:   "failed to validate networks configuration: network 16015286601757825753: at least one RPC is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Load(tt.givePaths...)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
