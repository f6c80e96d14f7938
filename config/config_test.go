package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// fileCfg is the config that is loaded from the testdata/config.yml file.
	fileCfg = &Config{
		NetworksFile:  "./networks.yaml",
		DatastoreFile: "./addresses.json",
		Compiler: CompilerConfig{
			SolcPath: "/usr/local/bin/solc",
			CacheTTL: 30 * time.Minute,
		},
		Deployer: DeployerConfig{
			MinConfirmations: 2,
			ConfirmTimeout:   2 * time.Minute,
			TickInterval:     500 * time.Millisecond,
		},
		Verify: VerifyConfig{
			PollInterval: time.Second,
			PollAttempts: 3,
		},
		Simulation: SimulationConfig{
			MinDelay:   100 * time.Millisecond,
			MaxDelay:   300 * time.Millisecond,
			ScriptPath: "./script.toml",
		},
		Log: LogConfig{Level: "debug", Development: true},
	}

	// defaultCfg is the config produced without a file or environment.
	defaultCfg = &Config{
		NetworksFile:  "networks.yaml",
		DatastoreFile: "deployments.json",
		Compiler:      CompilerConfig{CacheTTL: time.Hour},
		Deployer: DeployerConfig{
			MinConfirmations: 1,
			ConfirmTimeout:   5 * time.Minute,
			TickInterval:     time.Second,
		},
		Verify:     VerifyConfig{PollInterval: 5 * time.Second, PollAttempts: 10},
		Simulation: SimulationConfig{MinDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second},
		Log:        LogConfig{Level: "info"},
	}
)

func Test_Load_File(t *testing.T) {
	t.Parallel()

	got, err := Load(filepath.Join("testdata", "config.yml"))
	require.NoError(t, err)
	assert.Equal(t, fileCfg, got)
}

func Test_Load_Defaults(t *testing.T) {
	t.Parallel()

	got, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, defaultCfg, got)
}

//nolint:paralleltest // t.Setenv is not compatible with parallel tests
func Test_Load_EnvOverridesFile(t *testing.T) {
	t.Setenv("LAUNCHPAD_DEPLOYER_KEY", "0xabc")
	t.Setenv("LAUNCHPAD_MIN_CONFIRMATIONS", "3")
	t.Setenv("ETHERSCAN_API_KEY", "explorer-key")
	t.Setenv("LAUNCHPAD_LOG_LEVEL", "warn")

	got, err := Load(filepath.Join("testdata", "config.yml"))
	require.NoError(t, err)

	assert.Equal(t, "0xabc", got.Deployer.DeployerKey)
	assert.Equal(t, uint64(3), got.Deployer.MinConfirmations)
	assert.Equal(t, "explorer-key", got.Verify.APIKey)
	assert.Equal(t, "warn", got.Log.Level)
	// Untouched values still come from the file.
	assert.Equal(t, "/usr/local/bin/solc", got.Compiler.SolcPath)
}

//nolint:paralleltest // t.Setenv is not compatible with parallel tests
func Test_Load_PreferredEnvWins(t *testing.T) {
	t.Setenv("LAUNCHPAD_DEPLOYER_KEY", "preferred")
	t.Setenv("DEPLOYER_PRIVATE_KEY", "fallback")

	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "preferred", got.Deployer.DeployerKey)
}

func Test_Config_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    func(*Config)
		wantErr string
	}{
		{
			name: "valid",
			give: func(*Config) {},
		},
		{
			name:    "zero confirmations",
			give:    func(c *Config) { c.Deployer.MinConfirmations = 0 },
			wantErr: "min_confirmations must be at least 1",
		},
		{
			name: "inverted delay range",
			give: func(c *Config) {
				c.Simulation.MinDelay = 2 * time.Second
				c.Simulation.MaxDelay = time.Second
			},
			wantErr: "simulation delay range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := *defaultCfg
			tt.give(&cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
