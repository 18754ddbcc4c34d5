// Package config assembles the agent configuration from flags, environment
// variables and .env files.
//
// Every flag has an environment fallback: "--top-n" reads TOP_N, "--chain-id"
// reads CHAIN_ID and so on. The private key is only read from the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/serpius-project/wedx-go/internal/chain"
	"github.com/serpius-project/wedx-go/internal/eventlog"
	"github.com/serpius-project/wedx-go/internal/ethutil"
	"github.com/serpius-project/wedx-go/internal/marketdata"
	"github.com/serpius-project/wedx-go/internal/network"
	"github.com/serpius-project/wedx-go/internal/portfolio"
	"github.com/serpius-project/wedx-go/internal/rebalance"
	"github.com/serpius-project/wedx-go/internal/wedx"
)

const (
	KeyChainID         = "chain-id"
	KeyUserAddress     = "user-address"
	KeyPrivateKey      = "user-private-key"
	KeyRPC             = "rpc"
	KeyNetworkData     = "network-data"
	KeyExchangeDataURL = "exchange-data-url"
	KeyStrategy        = "strategy"
	KeyTopN            = "top-n"
	KeyExclude         = "exclude-assets"
	KeySchedule        = "schedule"
	KeyRunOnStart      = "run-on-start"
	KeyEnableTrading   = "enable-trading"
	KeyStepDelay       = "step-delay"
	KeyEventLog        = "event-log"
	KeyStateFile       = "state-file"
	KeyRedisURL        = "redis-url"
	KeyCacheTTL        = "cache-ttl"
	KeyFetchInterval   = "fetch-interval"
	KeyMetricsAddr     = "metrics-addr"
	KeyLogFile         = "log-file"
	KeyDebug           = "debug"
)

// ErrTradingKey is returned when trading is enabled without a usable key.
var ErrTradingKey = errors.New("USER_PRIVATE_KEY is required when trading is enabled")

type Config struct {
	Chain chain.Info
	// RPC overrides the RPC endpoint otherwise taken from RPC_BASE,
	// RPC_ARBITRUM or RPC_URL.
	RPC string

	User       common.Address
	PrivateKey string

	NetworkData     string
	ExchangeDataURL string
	FetchInterval   time.Duration
	RedisURL        string
	CacheTTL        time.Duration

	Strategy portfolio.Strategy
	TopN     int
	Exclude  []common.Address

	Schedule      string
	RunOnStart    bool
	EnableTrading bool
	StepDelay     time.Duration

	EventLog    string
	StateFile   string
	MetricsAddr string
	LogFile     string
	Debug       bool
}

// BindFlags registers every setting on fs with its default.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(KeyChainID, "8453", "chain id or name (base, arbitrum)")
	fs.String(KeyUserAddress, "", "trader wallet address")
	fs.String(KeyRPC, "", "RPC endpoint, overrides RPC_BASE / RPC_ARBITRUM / RPC_URL")
	fs.String(KeyNetworkData, network.DefaultPath, "path to the deployment data file")
	fs.String(KeyExchangeDataURL, marketdata.DefaultURL, "exchange data document URL")
	fs.Duration(KeyFetchInterval, time.Second, "minimum interval between exchange data requests")
	fs.String(KeyRedisURL, "", "redis URL used to cache exchange data (optional)")
	fs.Duration(KeyCacheTTL, 5*time.Minute, "exchange data cache TTL")
	fs.String(KeyStrategy, string(portfolio.EqualWeight), "target strategy: equal or tvl")
	fs.Int(KeyTopN, portfolio.DefaultTopN, "number of assets to hold")
	fs.String(KeyExclude, "", "comma separated asset addresses to never hold")
	fs.String(KeySchedule, rebalance.DefaultSchedule, "cron spec for rebalance cycles")
	fs.Bool(KeyRunOnStart, true, "run a cycle immediately on start")
	fs.Bool(KeyEnableTrading, false, "send transactions (default is dry-run)")
	fs.Duration(KeyStepDelay, 2*time.Second, "pause between rebalance transactions")
	fs.String(KeyEventLog, "logs/cycles.jsonl", "JSONL cycle event log (empty disables)")
	fs.String(KeyStateFile, "state/checkpoint.json", "checkpoint file (empty disables)")
	fs.String(KeyMetricsAddr, "", "listen address for /metrics, /status and /ws (empty disables)")
	fs.String(KeyLogFile, "", "also write JSON logs to this file")
	fs.Bool(KeyDebug, false, "debug logging")
}

// NewViper returns a viper instance reading KEY_NAME environment variables
// for "key-name" settings, bound to fs when it is not nil.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}
	return v, nil
}

// FromViper reads and validates the configuration. All problems are
// reported together.
func FromViper(v *viper.Viper) (Config, error) {
	var (
		cfg  Config
		errs error
	)

	id, err := chain.ParseID(v.GetString(KeyChainID))
	if err == nil {
		cfg.Chain, err = chain.Lookup(id)
	}
	errs = multierr.Append(errs, err)

	cfg.RPC = strings.TrimSpace(v.GetString(KeyRPC))
	if raw := strings.TrimSpace(v.GetString(KeyUserAddress)); raw != "" {
		cfg.User, err = ethutil.ParseAddress("USER_ADDRESS", raw)
		errs = multierr.Append(errs, err)
	}
	cfg.PrivateKey = strings.TrimSpace(v.GetString(KeyPrivateKey))

	cfg.NetworkData = strings.TrimSpace(v.GetString(KeyNetworkData))
	if cfg.NetworkData == "" {
		cfg.NetworkData = network.DefaultPath
	}
	cfg.ExchangeDataURL = strings.TrimSpace(v.GetString(KeyExchangeDataURL))
	if cfg.ExchangeDataURL == "" {
		cfg.ExchangeDataURL = marketdata.DefaultURL
	}
	cfg.FetchInterval = v.GetDuration(KeyFetchInterval)
	cfg.RedisURL = strings.TrimSpace(v.GetString(KeyRedisURL))
	cfg.CacheTTL = v.GetDuration(KeyCacheTTL)
	if cfg.RedisURL != "" && cfg.CacheTTL <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("CACHE_TTL must be positive when REDIS_URL is set"))
	}

	cfg.Strategy, err = portfolio.ParseStrategy(v.GetString(KeyStrategy))
	errs = multierr.Append(errs, err)
	cfg.TopN = v.GetInt(KeyTopN)
	if cfg.TopN == 0 {
		cfg.TopN = portfolio.DefaultTopN
	}
	if cfg.TopN < 0 {
		errs = multierr.Append(errs, fmt.Errorf("TOP_N must be positive, got %d", cfg.TopN))
	}
	cfg.Exclude, err = ethutil.ParseAddressList(v.GetString(KeyExclude))
	errs = multierr.Append(errs, err)

	cfg.Schedule = strings.TrimSpace(v.GetString(KeySchedule))
	if cfg.Schedule == "" {
		cfg.Schedule = rebalance.DefaultSchedule
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("SCHEDULE %q: %w", cfg.Schedule, err))
	}
	cfg.RunOnStart = v.GetBool(KeyRunOnStart)
	cfg.EnableTrading = v.GetBool(KeyEnableTrading)
	cfg.StepDelay = v.GetDuration(KeyStepDelay)
	if cfg.StepDelay < 0 {
		errs = multierr.Append(errs, fmt.Errorf("STEP_DELAY must not be negative"))
	}

	cfg.EventLog = strings.TrimSpace(v.GetString(KeyEventLog))
	cfg.StateFile = strings.TrimSpace(v.GetString(KeyStateFile))
	cfg.MetricsAddr = strings.TrimSpace(v.GetString(KeyMetricsAddr))
	cfg.LogFile = strings.TrimSpace(v.GetString(KeyLogFile))
	cfg.Debug = v.GetBool(KeyDebug)

	if cfg.EnableTrading {
		errs = multierr.Append(errs, cfg.checkTradingKey())
	}
	return cfg, errs
}

func (c Config) checkTradingKey() error {
	if c.PrivateKey == "" {
		return ErrTradingKey
	}
	if c.Chain.ID == 0 {
		return nil
	}
	signer, err := wedx.NewSigner(c.PrivateKey, c.Chain.ID)
	if err != nil {
		return fmt.Errorf("USER_PRIVATE_KEY: %w", err)
	}
	if (c.User != common.Address{}) && signer.Address() != c.User {
		return fmt.Errorf("USER_PRIVATE_KEY belongs to %s, not USER_ADDRESS %s", signer.Address().Hex(), c.User.Hex())
	}
	return nil
}

// RequireUser fails when no wallet address is configured and none can be
// derived from the private key.
func (c *Config) RequireUser() error {
	if (c.User != common.Address{}) {
		return nil
	}
	if c.PrivateKey != "" && c.Chain.ID != 0 {
		signer, err := wedx.NewSigner(c.PrivateKey, c.Chain.ID)
		if err != nil {
			return fmt.Errorf("USER_PRIVATE_KEY: %w", err)
		}
		c.User = signer.Address()
		return nil
	}
	return errors.New("USER_ADDRESS required")
}

// Signer returns nil, nil when no private key is configured.
func (c Config) Signer() (*wedx.Signer, error) {
	if c.PrivateKey == "" {
		return nil, nil
	}
	return wedx.NewSigner(c.PrivateKey, c.Chain.ID)
}

// Rebalance is the agent configuration.
func (c Config) Rebalance() rebalance.Config {
	return rebalance.Config{
		Chain:         c.Chain,
		Strategy:      c.Strategy,
		TopN:          c.TopN,
		Exclude:       ethutil.AddressSet(c.Exclude),
		EnableTrading: c.EnableTrading,
		StepDelay:     c.StepDelay,
	}
}

// EventLogRotation applies to both the cycle event log and the log file.
var EventLogRotation = eventlog.Rotation{MaxSizeMB: 50, MaxBackups: 10, MaxAgeDays: 30, Compress: true}
