// Package config loads the launchpad configuration from an optional file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// CompilerConfig configures the Solidity compiler.
type CompilerConfig struct {
	SolcPath string        `mapstructure:"solc_path" yaml:"solc_path"` // The solc binary; looked up in PATH when empty
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"` // How long compiled artifacts are memoised; 0 disables the cache
}

// DeployerConfig configures live deployments.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type DeployerConfig struct {
	DeployerKey      string        `mapstructure:"deployer_key" yaml:"deployer_key"`           // Secret: hex private key of the deployer account; empty means no account is connected
	MinConfirmations uint64        `mapstructure:"min_confirmations" yaml:"min_confirmations"` // Blocks a deployment must be buried under, including its own
	ConfirmTimeout   time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`     // Upper bound on waiting for a receipt
	TickInterval     time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`         // Receipt polling interval
}

// VerifyConfig configures source verification on block explorers.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type VerifyConfig struct {
	APIKey       string        `mapstructure:"api_key" yaml:"api_key"`             // Secret: fallback explorer API key for networks that do not set one
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"` // Delay between verification status checks
	PollAttempts uint          `mapstructure:"poll_attempts" yaml:"poll_attempts"` // Status checks before giving up
}

// SimulationConfig configures the offline simulated engine.
type SimulationConfig struct {
	MinDelay   time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	ScriptPath string        `mapstructure:"script_path" yaml:"script_path"` // TOML script replacing the default steps
}

// LogConfig configures the runtime logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Config wraps the entire launchpad configuration.
type Config struct {
	NetworksFile  string           `mapstructure:"networks_file" yaml:"networks_file"`   // Path to the YAML networks manifest
	DatastoreFile string           `mapstructure:"datastore_file" yaml:"datastore_file"` // Address book of deployed contracts; empty disables recording
	Compiler      CompilerConfig   `mapstructure:"compiler" yaml:"compiler"`
	Deployer      DeployerConfig   `mapstructure:"deployer" yaml:"deployer"`
	Verify        VerifyConfig     `mapstructure:"verify" yaml:"verify"`
	Simulation    SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
	Log           LogConfig        `mapstructure:"log" yaml:"log"`
}

// Validate checks the values that have no safe interpretation.
func (c *Config) Validate() error {
	if c.Deployer.MinConfirmations == 0 {
		return errors.New("deployer.min_confirmations must be at least 1")
	}
	if c.Simulation.MinDelay < 0 || c.Simulation.MaxDelay < c.Simulation.MinDelay {
		return fmt.Errorf("simulation delay range [%s, %s] is invalid",
			c.Simulation.MinDelay, c.Simulation.MaxDelay)
	}

	return nil
}

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
// An empty path loads from the environment only.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if filePath != "" {
		v.SetConfigFile(filePath)

		// If the config file exists, we continue to read it, otherwise we fallback to using
		// environment variables
		if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", filePath, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("networks_file", "networks.yaml")
	v.SetDefault("datastore_file", "deployments.json")
	v.SetDefault("compiler.cache_ttl", time.Hour)
	v.SetDefault("deployer.min_confirmations", 1)
	v.SetDefault("deployer.confirm_timeout", 5*time.Minute)
	v.SetDefault("deployer.tick_interval", time.Second)
	v.SetDefault("verify.poll_interval", 5*time.Second)
	v.SetDefault("verify.poll_attempts", 10)
	v.SetDefault("simulation.min_delay", 500*time.Millisecond)
	v.SetDefault("simulation.max_delay", 2*time.Second)
	v.SetDefault("log.level", "info")
}

var (
	// envBindings maps each config key to the environment variables that can provide its value.
	// The first name is preferred; later ones are widely used conventions accepted as fallbacks.
	envBindings = map[string][]string{
		"networks_file":              {"LAUNCHPAD_NETWORKS_FILE"},
		"datastore_file":             {"LAUNCHPAD_DATASTORE_FILE"},
		"compiler.solc_path":         {"LAUNCHPAD_SOLC_PATH", "SOLC_PATH"},
		"deployer.deployer_key":      {"LAUNCHPAD_DEPLOYER_KEY", "DEPLOYER_PRIVATE_KEY"},
		"deployer.min_confirmations": {"LAUNCHPAD_MIN_CONFIRMATIONS"},
		"verify.api_key":             {"LAUNCHPAD_EXPLORER_API_KEY", "ETHERSCAN_API_KEY"},
		"simulation.script_path":     {"LAUNCHPAD_SIMULATION_SCRIPT"},
		"log.level":                  {"LAUNCHPAD_LOG_LEVEL"},
	}
)

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		// Prepend the config key to the start of the arguments
		inputs := slices.Insert(slices.Clone(envs), 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
