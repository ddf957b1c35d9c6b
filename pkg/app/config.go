package app

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the process configuration, read from an optional YAML file and
// overridden by environment variables.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	AppName string `mapstructure:"app_name"`

	ListenAddress      string `mapstructure:"listen_address"`
	DebugListenAddress string `mapstructure:"debug_listen_address"`

	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	EnablePprof bool `mapstructure:"enable_pprof"`

	// Ballast for improving Go GC performance, as a fraction of the total
	// memory capped at 50%.
	// https://blog.twitch.tv/en/2019/04/10/go-memory-ballast-how-i-learnt-to-stop-worrying-and-love-the-heap/
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float64 `mapstructure:"ballast_capacity"`

	// Periodically terminate the application when there's a memory leak
	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`

	CacheFlushSchedule string `mapstructure:"cache_flush_schedule"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	SolanaRpcEndpoint  string  `mapstructure:"solana_rpc_endpoint"`
	SolanaRpcRateLimit float64 `mapstructure:"solana_rpc_rate_limit"`

	JupiterBaseUrl  string `mapstructure:"jupiter_base_url"`
	SwapSlippageBps uint32 `mapstructure:"swap_slippage_bps"`

	BackendWalletSecret string  `mapstructure:"backend_wallet_secret"`
	CreateMintRateLimit float64 `mapstructure:"create_mint_rate_limit"`

	// PostgresDSN selects the postgres mint ledger. The in memory ledger is
	// used when empty.
	PostgresDSN string `mapstructure:"postgres_dsn"`

	LibraryConcurrency  int `mapstructure:"library_concurrency"`
	MetadataCacheBudget int `mapstructure:"metadata_cache_budget"`
}

var defaultConfig = Config{
	LogLevel:  "info",
	LogFormat: "json",

	AppName: "tunegate",

	ListenAddress:      ":8080",
	DebugListenAddress: "localhost:8123",

	ShutdownGracePeriod: 30 * time.Second,

	EnablePprof: true,

	EnableBallast:   false,
	BallastCapacity: 0.25,

	EnableMemoryLeakCron:   false,
	MemoryLeakCronSchedule: "0 5 * * *",

	CacheFlushSchedule: "@every 1h",

	SolanaRpcEndpoint:  "devnet",
	SolanaRpcRateLimit: 10,

	SwapSlippageBps: 50,

	CreateMintRateLimit: 0.1,

	LibraryConcurrency:  8,
	MetadataCacheBudget: 1024,
}

// DefaultConfig returns the configuration used for unset keys.
func DefaultConfig() Config {
	return defaultConfig
}

var envBindings = map[string]string{
	"log_level":                 "LOG_LEVEL",
	"log_format":                "LOG_FORMAT",
	"app_name":                  "APP_NAME",
	"listen_address":            "LISTEN_ADDRESS",
	"debug_listen_address":      "DEBUG_LISTEN_ADDRESS",
	"shutdown_grace_period":     "SHUTDOWN_GRACE_PERIOD",
	"enable_pprof":              "ENABLE_PPROF",
	"enable_ballast":            "ENABLE_BALLAST",
	"ballast_capacity":          "BALLAST_CAPACITY",
	"enable_memory_leak_cron":   "ENABLE_MEMORY_LEAK_CRON",
	"memory_leak_cron_schedule": "MEMORY_LEAK_CRON_SCHEDULE",
	"cache_flush_schedule":      "CACHE_FLUSH_SCHEDULE",
	"new_relic_license_key":     "NEW_RELIC_LICENSE_KEY",
	"solana_rpc_endpoint":       "SOLANA_RPC_ENDPOINT",
	"solana_rpc_rate_limit":     "SOLANA_RPC_RATE_LIMIT",
	"jupiter_base_url":          "JUPITER_BASE_URL",
	"swap_slippage_bps":         "SWAP_SLIPPAGE_BPS",
	"backend_wallet_secret":     "BACKEND_WALLET_SECRET",
	"create_mint_rate_limit":    "CREATE_MINT_RATE_LIMIT",
	"postgres_dsn":              "POSTGRES_DSN",
	"library_concurrency":       "LIBRARY_CONCURRENCY",
	"metadata_cache_budget":     "METADATA_CACHE_BUDGET",
}

// LoadConfig reads the configuration file at path, if it exists, and the
// environment. An empty path only reads the environment.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if len(path) > 0 {
		// viper only reports ConfigFileNotFoundError when it searches for a
		// default file, so a missing explicit file is checked here.
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, errors.Wrap(err, "failed to read config")
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errors.Wrap(err, "failed to check if config exists")
		}
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if len(c.AppName) == 0 {
		return errors.New("must specify an application name")
	}
	if len(c.ListenAddress) == 0 {
		return errors.New("must specify a listen address")
	}
	if c.ShutdownGracePeriod <= 0 {
		return errors.New("shutdown grace period must be positive")
	}
	if c.SolanaRpcRateLimit < 0 {
		return errors.New("solana rpc rate limit must not be negative")
	}
	if c.SwapSlippageBps > 10_000 {
		return errors.Errorf("invalid swap slippage: %d bps", c.SwapSlippageBps)
	}
	return nil
}
