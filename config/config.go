package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mint-dashboard/gateway"
)

const envPrefix = "MINTSYNC"

type Config struct {
	ServerPort int

	LogLevel   string
	AppLogFile string

	LevelDBPath string

	RPCURL          string
	ContractAddress string
	ChainID         int64
	ConfirmTimeout  time.Duration

	PrivateKey string

	TickInterval  time.Duration
	PollInterval  time.Duration
	TokenDecimals int
}

// Load reads .env, then the YAML file, then MINTSYNC_* variables.
// A missing config file falls back to defaults.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		ServerPort:      v.GetInt("server.port"),
		LogLevel:        v.GetString("log.level"),
		AppLogFile:      v.GetString("log.app_log_file"),
		LevelDBPath:     v.GetString("leveldb.path"),
		RPCURL:          v.GetString("chain.rpc_url"),
		ContractAddress: v.GetString("chain.contract_address"),
		ChainID:         v.GetInt64("chain.chain_id"),
		ConfirmTimeout:  v.GetDuration("chain.confirm_timeout"),
		PrivateKey:      v.GetString("wallet.private_key"),
		TickInterval:    v.GetDuration("sync.tick_interval"),
		PollInterval:    v.GetDuration("sync.poll_interval"),
		TokenDecimals:   v.GetInt("sync.token_decimals"),
	}
	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.app_log_file", "")
	v.SetDefault("leveldb.path", "data/activity")
	v.SetDefault("chain.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("chain.contract_address", gateway.DefaultContractAddress)
	v.SetDefault("chain.chain_id", 0)
	v.SetDefault("chain.confirm_timeout", 10*time.Minute)
	v.SetDefault("wallet.private_key", "")
	v.SetDefault("sync.tick_interval", time.Second)
	v.SetDefault("sync.poll_interval", 0)
	v.SetDefault("sync.token_decimals", 18)
}

func (c *Config) Validate() error {
	if c.ServerPort <= 0 {
		return errors.New("server.port must be positive")
	}
	if c.RPCURL == "" {
		return errors.New("chain.rpc_url is required")
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("chain.contract_address %q is not an address", c.ContractAddress)
	}
	if c.ConfirmTimeout <= 0 {
		return errors.New("chain.confirm_timeout must be positive")
	}
	if c.TickInterval <= 0 {
		return errors.New("sync.tick_interval must be positive")
	}
	if c.PollInterval < 0 {
		return errors.New("sync.poll_interval must not be negative")
	}
	if c.TokenDecimals <= 0 {
		return errors.New("sync.token_decimals must be positive")
	}
	return nil
}
