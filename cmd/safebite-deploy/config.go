package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/artpar/safebite-deploy/internal/core/deployment"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Network     NetworkConfig     `mapstructure:"network"`
	Signer      SignerConfig      `mapstructure:"signer"`
	Artifacts   ArtifactsConfig   `mapstructure:"artifacts"`
	Deployments DeploymentsConfig `mapstructure:"deployments"`
	History     HistoryConfig     `mapstructure:"history"`
	Log         LogConfig         `mapstructure:"log"`
}

// NetworkConfig identifies the chain to deploy to.
type NetworkConfig struct {
	// Name is recorded in the manifest and names the manifest file.
	Name   string `mapstructure:"name"`
	RPCURL string `mapstructure:"rpc_url"`

	// ChainID, when non-zero, must match what the endpoint reports.
	ChainID int64 `mapstructure:"chain_id"`
}

// SignerConfig holds the deploying account.
// Set via SAFEBITE_SIGNER_PRIVATE_KEY rather than a config file.
type SignerConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

// ArtifactsConfig points at compiled contract artifacts (Hardhat or Foundry).
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir"`
}

// DeploymentsConfig controls where the manifest is written.
type DeploymentsConfig struct {
	Dir string `mapstructure:"dir"`

	// FileName overrides the manifest base name. Empty means the network name.
	FileName string `mapstructure:"file_name"`
}

// ManifestPath returns the manifest location for the configured network.
func (c DeploymentsConfig) ManifestPath(network string) string {
	return deployment.ManifestPath(c.Dir, deployment.ManifestName(network, c.FileName))
}

// HistoryConfig holds deployment history database configuration.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("network.name", "hardhat")
	v.SetDefault("network.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("network.chain_id", 0)
	v.SetDefault("signer.private_key", "")
	v.SetDefault("artifacts.dir", "./artifacts")
	v.SetDefault("deployments.dir", "./deployments")
	v.SetDefault("deployments.file_name", "")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dsn", "./data/deployments.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only a file that exists but cannot be parsed is an error
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("SAFEBITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings a deployment cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Network.Name) == "" {
		errs = append(errs, errors.New("network.name is required"))
	}
	if strings.TrimSpace(c.Network.RPCURL) == "" {
		errs = append(errs, errors.New("network.rpc_url is required"))
	}
	if strings.TrimSpace(c.Signer.PrivateKey) == "" {
		errs = append(errs, errors.New("signer.private_key is required (set SAFEBITE_SIGNER_PRIVATE_KEY)"))
	}
	if c.Network.Name != "" {
		key := "network.name"
		if strings.TrimSpace(c.Deployments.FileName) != "" {
			key = "deployments.file_name"
		}
		if err := deployment.ValidateManifestName(deployment.ManifestName(c.Network.Name, c.Deployments.FileName)); err != nil {
			// Reported as configuration, not as a manifest failure
			errs = append(errs, fmt.Errorf("%s: %v", key, err))
		}
	}
	if c.Network.ChainID < 0 {
		errs = append(errs, fmt.Errorf("network.chain_id must not be negative, got %d", c.Network.ChainID))
	}
	if c.History.Enabled && strings.TrimSpace(c.History.DSN) == "" {
		errs = append(errs, errors.New("history.dsn is required when history is enabled"))
	}
	return errors.Join(errs...)
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to stderr so the deployment report on stdout stays readable.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
