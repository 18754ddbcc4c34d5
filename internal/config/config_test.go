package config

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/serpius-project/wedx-go/internal/chain"
	"github.com/serpius-project/wedx-go/internal/network"
	"github.com/serpius-project/wedx-go/internal/portfolio"
)

const (
	testKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testUser = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var envKeys = []string{
	"CHAIN_ID", "USER_ADDRESS", "USER_PRIVATE_KEY", "RPC", "NETWORK_DATA", "EXCHANGE_DATA_URL",
	"FETCH_INTERVAL", "REDIS_URL", "CACHE_TTL", "STRATEGY", "TOP_N", "EXCLUDE_ASSETS", "SCHEDULE",
	"RUN_ON_START", "ENABLE_TRADING", "STEP_DELAY", "EVENT_LOG", "STATE_FILE", "METRICS_ADDR",
	"LOG_FILE", "DEBUG",
}

// load clears the environment, applies env, parses args and reads the config.
func load(t *testing.T, env map[string]string, args ...string) (Config, error) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	v, err := NewViper(fs)
	require.NoError(t, err)
	return FromViper(v)
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t, map[string]string{"USER_ADDRESS": testUser})
	require.NoError(t, err)

	assert.Equal(t, chain.Base, cfg.Chain.ID)
	assert.Equal(t, common.HexToAddress(testUser), cfg.User)
	assert.Equal(t, network.DefaultPath, cfg.NetworkData)
	assert.Equal(t, portfolio.EqualWeight, cfg.Strategy)
	assert.Equal(t, portfolio.DefaultTopN, cfg.TopN)
	assert.Equal(t, "@every 1h", cfg.Schedule)
	assert.True(t, cfg.RunOnStart)
	assert.False(t, cfg.EnableTrading)
	assert.Equal(t, 2*time.Second, cfg.StepDelay)
	assert.Empty(t, cfg.Exclude)

	signer, err := cfg.Signer()
	require.NoError(t, err)
	assert.Nil(t, signer)
}

func TestEnvironment(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"CHAIN_ID":         "arbitrum",
		"USER_ADDRESS":     testUser,
		"USER_PRIVATE_KEY": testKey,
		"STRATEGY":         "tvl",
		"TOP_N":            "5",
		"EXCLUDE_ASSETS":   "0x0000000000000000000000000000000000000001, 0x0000000000000000000000000000000000000002",
		"ENABLE_TRADING":   "true",
		"STEP_DELAY":       "500ms",
		"SCHEDULE":         "0 * * * *",
	})
	require.NoError(t, err)

	assert.Equal(t, chain.Arbitrum, cfg.Chain.ID)
	assert.Equal(t, portfolio.TVLWeight, cfg.Strategy)
	assert.Equal(t, "0 * * * *", cfg.Schedule)

	rc := cfg.Rebalance()
	assert.Equal(t, 5, rc.TopN)
	assert.True(t, rc.EnableTrading)
	assert.Equal(t, 500*time.Millisecond, rc.StepDelay)
	assert.Len(t, rc.Exclude, 2)
	assert.Contains(t, rc.Exclude, common.HexToAddress("0x2"))

	signer, err := cfg.Signer()
	require.NoError(t, err)
	assert.Equal(t, cfg.User, signer.Address())
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	cfg, err := load(t, map[string]string{"TOP_N": "5", "CHAIN_ID": "8453"}, "--top-n=3", "--chain-id=42161")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.TopN)
	assert.Equal(t, chain.Arbitrum, cfg.Chain.ID)
}

func TestErrorsAreAggregated(t *testing.T) {
	_, err := load(t, map[string]string{
		"CHAIN_ID":       "1",
		"STRATEGY":       "momentum",
		"SCHEDULE":       "whenever",
		"ENABLE_TRADING": "true",
	})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
	assert.True(t, errors.Is(err, ErrTradingKey))
	assert.True(t, errors.Is(err, chain.ErrUnsupportedChain))
}

func TestTradingKeyMustMatchUser(t *testing.T) {
	_, err := load(t, map[string]string{
		"USER_ADDRESS":     "0x0000000000000000000000000000000000000001",
		"USER_PRIVATE_KEY": testKey,
		"ENABLE_TRADING":   "1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not USER_ADDRESS")
}

func TestInvalidValues(t *testing.T) {
	_, err := load(t, map[string]string{
		"USER_ADDRESS":   "0x1234",
		"EXCLUDE_ASSETS": "nope",
		"TOP_N":          "-2",
		"REDIS_URL":      "redis://localhost:6379/0",
		"CACHE_TTL":      "0s",
	})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
}

func TestRequireUser(t *testing.T) {
	cfg, err := load(t, map[string]string{"USER_PRIVATE_KEY": testKey})
	require.NoError(t, err)
	require.NoError(t, cfg.RequireUser())
	assert.Equal(t, common.HexToAddress(testUser), cfg.User)

	empty, err := load(t, nil)
	require.NoError(t, err)
	assert.Error(t, empty.RequireUser())
}
