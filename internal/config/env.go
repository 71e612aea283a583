package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config contains all configuration parameters for the application.
type Config struct {
	Port         string `envconfig:"PORT" default:"8080"`
	StorageDir   string `envconfig:"STORAGE_DIR" default:".connectkit"`
	SyncBaseURL  string `envconfig:"SYNC_BASE_URL" default:"https://cloud-sync.api.live.ledger.com"`
	RatesBaseURL string `envconfig:"RATES_BASE_URL" default:"https://api.coingecko.com/api/v3"`
	ChainRPCURL  string `envconfig:"CHAIN_RPC_URL" default:"https://eth.llamarpc.com"`
	BridgeURL    string `envconfig:"BRIDGE_URL" default:"http://127.0.0.1:8435"`
	SyncVersion  int    `envconfig:"SYNC_VERSION" default:"1"`
	WalletName   string `envconfig:"WALLET_NAME" default:"ConnectKit"`
	WalletRDNS   string `envconfig:"WALLET_RDNS" default:"com.connectkit"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	cfg = &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetStorageDir returns the local storage directory from configuration
func GetStorageDir() string {
	return Get().StorageDir
}

// GetSyncBaseURL returns the cloud sync API base URL from configuration
func GetSyncBaseURL() string {
	return Get().SyncBaseURL
}

// GetRatesBaseURL returns the fiat rates API base URL from configuration
func GetRatesBaseURL() string {
	return Get().RatesBaseURL
}

// GetChainRPCURL returns the chain JSON-RPC URL from configuration
func GetChainRPCURL() string {
	return Get().ChainRPCURL
}

// GetBridgeURL returns the device bridge URL from configuration
func GetBridgeURL() string {
	return Get().BridgeURL
}

// GetSyncVersion returns the cloud sync data version from configuration
func GetSyncVersion() int {
	return Get().SyncVersion
}

// GetWalletName returns the announced wallet name from configuration
func GetWalletName() string {
	return Get().WalletName
}

// GetWalletRDNS returns the announced reverse-DNS identifier from configuration
func GetWalletRDNS() string {
	return Get().WalletRDNS
}
