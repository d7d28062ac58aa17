package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
)

const serviceName = "nft-transfer"

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// EthereumConfig holds EVM network configuration
type EthereumConfig struct {
	RPCURL string `mapstructure:"rpc_url"`
	// ChainID is the CAIP-2 chain (e.g. eip155:1), empty to use the chain reported by the RPC node
	ChainID domain.Chain `mapstructure:"chain_id"`
	// RateLimit caps read calls and receipt polls per second, 0 disables it
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// WalletConfig holds the signing wallet configuration
type WalletConfig struct {
	PrivateKey  string `mapstructure:"private_key"`
	AutoApprove bool   `mapstructure:"auto_approve"`
}

// ConfirmationConfig holds receipt polling configuration
type ConfirmationConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
}

// DetectorConfig holds contract type detection cache configuration
type DetectorConfig struct {
	CacheSize int           `mapstructure:"cache_size"` // in megabytes
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// TransferConfig holds configuration for the nft-transfer command
type TransferConfig struct {
	BaseConfig   `mapstructure:",squash"`
	Ethereum     EthereumConfig     `mapstructure:"ethereum"`
	Wallet       WalletConfig       `mapstructure:"wallet"`
	Confirmation ConfirmationConfig `mapstructure:"confirmation"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Detector     DetectorConfig     `mapstructure:"detector"`
}

// LoadTransferConfig loads configuration for the nft-transfer command
func LoadTransferConfig(configFile string, envPath string) (*TransferConfig, error) {
	v := configureViper(serviceName, configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("ethereum.rate_limit", 0)
	v.SetDefault("ethereum.rate_burst", 1)
	v.SetDefault("wallet.auto_approve", false)
	v.SetDefault("confirmation.initial_interval", "2s")
	v.SetDefault("confirmation.max_interval", "15s")
	v.SetDefault("worker.pool_size", 8)
	v.SetDefault("worker.queue_size", 256)
	v.SetDefault("detector.cache_size", 1)
	v.SetDefault("detector.cache_ttl", "10m")

	if err := v.ReadInConfig(); err != nil {
		var error viper.ConfigFileNotFoundError
		if errors.As(err, &error) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config TransferConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate checks the fields every command needs, plus the wallet when requireWallet is set
func (c *TransferConfig) Validate(requireWallet bool) error {
	if c.Ethereum.RPCURL == "" {
		return errors.New("ethereum.rpc_url is required")
	}
	if c.Ethereum.ChainID != "" {
		if _, err := c.Ethereum.ChainID.EVMChainID(); err != nil {
			return fmt.Errorf("ethereum.chain_id: %w", err)
		}
	}
	if c.Ethereum.RateLimit < 0 {
		return errors.New("ethereum.rate_limit must not be negative")
	}
	if requireWallet && c.Wallet.PrivateKey == "" {
		return errors.New("wallet.private_key is required")
	}
	if c.Worker.WorkerPoolSize <= 0 {
		return errors.New("worker.pool_size must be positive")
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Command directory
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory, also found from a subdirectory of the project
		v.AddConfigPath("config/")
		if cwd, err := os.Getwd(); err == nil {
			if dir, ok := findConfigDir(cwd); ok {
				v.AddConfigPath(dir)
			}
		}
	}

	// Set environment variables
	v.SetEnvPrefix("NFT_TRANSFER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Ethereum
		"ethereum.rpc_url",
		"ethereum.chain_id",
		"ethereum.rate_limit",
		"ethereum.rate_burst",
		// Wallet
		"wallet.private_key",
		"wallet.auto_approve",
		// Confirmation
		"confirmation.initial_interval",
		"confirmation.max_interval",
		// Worker
		"worker.pool_size",
		"worker.queue_size",
		// Detector
		"detector.cache_size",
		"detector.cache_ttl",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to the nearest config directory
	if envPath == "" {
		envPath = "config/"
		if cwd, err := os.Getwd(); err == nil {
			if dir, ok := findConfigDir(cwd); ok {
				envPath = dir
			}
		}
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// findConfigDir returns the nearest config/ directory at or above start, searching up to five levels
func findConfigDir(start string) (string, bool) {
	dir := start
	for range 5 {
		candidate := filepath.Join(dir, "config")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}
