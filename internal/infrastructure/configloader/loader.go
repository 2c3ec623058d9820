package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvAccountAddress = "TOKEN_LEDGER_ACCOUNT_ADDRESS"
	EnvNetwork        = "TOKEN_LEDGER_NETWORK"
	EnvRedisAddr      = "TOKEN_LEDGER_REDIS_ADDR"
	EnvLogLevel       = "TOKEN_LEDGER_LOG_LEVEL"
	EnvPriceAPIKey    = "TOKEN_LEDGER_PRICE_API_KEY"
)

// Storage drivers and price providers.
const (
	StorageRedis  = "redis"
	StorageMemory = "memory"

	PriceProviderDEXScreener = "dexscreener"
	PriceProviderTicker      = "ticker"
)

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Port               string   `yaml:"port"`
	ReadTimeout        int      `yaml:"readTimeout"`
	WriteTimeout       int      `yaml:"writeTimeout"`
	IdleTimeout        int      `yaml:"idleTimeout"`
	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`    // debug, info, warn, error
	Encoding   string `yaml:"encoding"` // json or console
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// AccountConfig names the tracked account and its network.
type AccountConfig struct {
	Address string `yaml:"address"`
	Network string `yaml:"network"`
}

// SyncConfig tunes the refresh coordinators.
type SyncConfig struct {
	Currency                    string `yaml:"currency"`
	PriceRefreshIntervalSeconds int    `yaml:"priceRefreshIntervalSeconds"`
	PriceCycleTimeoutSeconds    int    `yaml:"priceCycleTimeoutSeconds"`
	FullSyncIntervalSeconds     int    `yaml:"fullSyncIntervalSeconds"` // 0 disables periodic full syncs
	FullSyncTimeoutSeconds      int    `yaml:"fullSyncTimeoutSeconds"`
	MaxConcurrentQueries        int    `yaml:"maxConcurrentQueries"`
	EventBuffer                 int    `yaml:"eventBuffer"`
}

// RpcClientConfig holds configuration for RPC clients.
type RpcClientConfig struct {
	DefaultTimeoutMs int64               `yaml:"defaultTimeoutMs"`
	ConnectTimeoutMs int64               `yaml:"connectTimeoutMs"`
	RateLimit        float64             `yaml:"rateLimit"`
	BurstLimit       int                 `yaml:"burstLimit"`
	URLs             map[string][]string `yaml:"urls"` // network identifier -> RPC URLs, first is primary
}

// PriceAPIConfig selects and configures the price source.
type PriceAPIConfig struct {
	Provider                 string `yaml:"provider"`
	BaseURL                  string `yaml:"baseURL"`
	APIKey                   string `yaml:"apiKey"`
	RequestTimeoutMillis     int64  `yaml:"requestTimeoutMillis"`
	MaxTokensPerBatchRequest int    `yaml:"maxTokensPerBatchRequest"`
	MaxConcurrentRequests    int    `yaml:"maxConcurrentRequests"`
}

// TokenListConfig configures the server token-list client.
type TokenListConfig struct {
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	CacheTTLMinutes      int    `yaml:"cacheTTLMinutes"`
}

// HistoryConfig locates the transaction history files.
type HistoryConfig struct {
	Dir string `yaml:"dir"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig selects the persistence engine.
type StorageConfig struct {
	Driver string      `yaml:"driver"`
	Redis  RedisConfig `yaml:"redis"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Account   AccountConfig   `yaml:"account"`
	Sync      SyncConfig      `yaml:"sync"`
	RpcClient RpcClientConfig `yaml:"rpcClient"`
	PriceAPI  PriceAPIConfig  `yaml:"priceAPI"`
	TokenList TokenListConfig `yaml:"tokenList"`
	History   HistoryConfig   `yaml:"history"`
	Storage   StorageConfig   `yaml:"storage"`
}

// PriceRefreshInterval returns the scheduler interval.
func (c *Config) PriceRefreshInterval() time.Duration {
	return time.Duration(c.Sync.PriceRefreshIntervalSeconds) * time.Second
}

// Load reads .env (when present), the YAML file at path, applies environment overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	var cfg Config
	if path != "" {
		logrus.Infof("Loading configuration from path: %s", path)
		data, err := os.ReadFile(path)
		if err != nil {
			logrus.Errorf("Failed to read config file %s: %v", path, err)
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
			return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{EnvAccountAddress, &cfg.Account.Address},
		{EnvNetwork, &cfg.Account.Network},
		{EnvRedisAddr, &cfg.Storage.Redis.Addr},
		{EnvLogLevel, &cfg.Logging.Level},
		{EnvPriceAPIKey, &cfg.PriceAPI.APIKey},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && strings.TrimSpace(v) != "" {
			*o.target = strings.TrimSpace(v)
			logrus.Debugf("%s overrides configuration", o.env)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 60
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 120
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Encoding == "" {
		cfg.Logging.Encoding = "json"
	}

	if cfg.Account.Network == "" {
		cfg.Account.Network = "ethereum"
		logrus.Infof("Account network not set, defaulting to %s", cfg.Account.Network)
	}

	if cfg.Sync.Currency == "" {
		cfg.Sync.Currency = "USD"
	}
	cfg.Sync.Currency = strings.ToUpper(cfg.Sync.Currency)
	if cfg.Sync.PriceRefreshIntervalSeconds <= 0 {
		cfg.Sync.PriceRefreshIntervalSeconds = 300
		logrus.Infof("Price refresh interval not set, defaulting to %d seconds", cfg.Sync.PriceRefreshIntervalSeconds)
	}
	if cfg.Sync.PriceCycleTimeoutSeconds <= 0 {
		cfg.Sync.PriceCycleTimeoutSeconds = 30
	}
	if cfg.Sync.FullSyncTimeoutSeconds <= 0 {
		cfg.Sync.FullSyncTimeoutSeconds = 120
	}
	if cfg.Sync.MaxConcurrentQueries <= 0 {
		cfg.Sync.MaxConcurrentQueries = 10
	}
	if cfg.Sync.EventBuffer <= 0 {
		cfg.Sync.EventBuffer = 256
	}

	if cfg.RpcClient.DefaultTimeoutMs <= 0 {
		cfg.RpcClient.DefaultTimeoutMs = 10000
	}
	if cfg.RpcClient.ConnectTimeoutMs <= 0 {
		cfg.RpcClient.ConnectTimeoutMs = 10000
	}

	if cfg.PriceAPI.Provider == "" {
		cfg.PriceAPI.Provider = PriceProviderDEXScreener
	}
	cfg.PriceAPI.Provider = strings.ToLower(cfg.PriceAPI.Provider)
	if cfg.PriceAPI.Provider == PriceProviderDEXScreener && cfg.PriceAPI.BaseURL == "" {
		cfg.PriceAPI.BaseURL = "https://api.dexscreener.com"
		logrus.Infof("PriceAPI.BaseURL not set, defaulting to %s", cfg.PriceAPI.BaseURL)
	}
	if cfg.PriceAPI.RequestTimeoutMillis == 0 {
		cfg.PriceAPI.RequestTimeoutMillis = 10000
	}
	if cfg.PriceAPI.MaxTokensPerBatchRequest == 0 {
		cfg.PriceAPI.MaxTokensPerBatchRequest = 30 // DEXScreener limit
	}
	if cfg.PriceAPI.MaxConcurrentRequests == 0 {
		cfg.PriceAPI.MaxConcurrentRequests = 4
	}

	if cfg.TokenList.RequestTimeoutMillis == 0 {
		cfg.TokenList.RequestTimeoutMillis = 10000
	}
	if cfg.TokenList.CacheTTLMinutes == 0 {
		cfg.TokenList.CacheTTLMinutes = 10
	}

	if cfg.History.Dir == "" {
		cfg.History.Dir = "data/history"
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageRedis
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	if cfg.Storage.Driver == StorageRedis && cfg.Storage.Redis.Addr == "" {
		cfg.Storage.Redis.Addr = "localhost:6379"
		logrus.Infof("Storage.Redis.Addr not set, defaulting to %s", cfg.Storage.Redis.Addr)
	}
}

func validate(cfg *Config) error {
	if !common.IsHexAddress(cfg.Account.Address) {
		return fmt.Errorf("account.address %q is not a valid hex address (set it in the file or %s)", cfg.Account.Address, EnvAccountAddress)
	}
	switch cfg.Storage.Driver {
	case StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}
	switch cfg.PriceAPI.Provider {
	case PriceProviderDEXScreener:
	case PriceProviderTicker:
		if cfg.PriceAPI.BaseURL == "" {
			return errors.New("priceAPI.baseURL is required for the ticker provider")
		}
	default:
		return fmt.Errorf("unknown priceAPI.provider %q", cfg.PriceAPI.Provider)
	}
	return nil
}
