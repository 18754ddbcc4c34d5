package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrChainMismatch = errors.New("rpc chain id mismatch")

// RPCURL picks the endpoint for info: an explicit override, then the
// chain-specific env var, then RPC_URL, then the public default.
func RPCURL(info Info, override string) (string, error) {
	rpcURL := strings.TrimSpace(firstNonEmpty(override, os.Getenv(info.RPCEnv), os.Getenv("RPC_URL"), info.DefaultRPC))
	if rpcURL == "" {
		return "", fmt.Errorf("%s RPC URL missing (set %s or RPC_URL)", info.Name, info.RPCEnv)
	}
	if !strings.HasPrefix(rpcURL, "ws") && !strings.HasPrefix(rpcURL, "http") {
		return "", fmt.Errorf("%s RPC URL must be ws(s)://... or http(s)://..., got %q", info.Name, rpcURL)
	}
	if strings.Contains(rpcURL, "YOUR_KEY") {
		return "", fmt.Errorf("%s RPC URL still contains placeholder YOUR_KEY. Set %s to your provider URL", info.Name, info.RPCEnv)
	}
	return rpcURL, nil
}

// DialOptions tunes DialWithBackoff. Zero values use the defaults.
type DialOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsed bounds the total retry time; zero retries until ctx is done.
	MaxElapsed time.Duration
}

// DialWithBackoff connects to rpcURL and checks that the node serves want.
// Connection failures are retried with exponential backoff; a chain id
// mismatch is returned immediately.
func DialWithBackoff(ctx context.Context, rpcURL string, want ID, opts DialOptions) (*ethclient.Client, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	if opts.InitialInterval > 0 {
		bo.InitialInterval = opts.InitialInterval
	}
	if opts.MaxInterval > 0 {
		bo.MaxInterval = opts.MaxInterval
	}
	if opts.MaxElapsed > 0 {
		bo.MaxElapsedTime = opts.MaxElapsed
	}

	var client *ethclient.Client
	op := func() error {
		c, err := ethclient.DialContext(ctx, rpcURL)
		if err != nil {
			return fmt.Errorf("dial %s RPC: %w", want, err)
		}
		got, err := c.ChainID(ctx)
		if err != nil {
			c.Close()
			return fmt.Errorf("%s eth_chainId: %w", want, err)
		}
		if got.Cmp(big.NewInt(int64(want))) != 0 {
			c.Close()
			return backoff.Permanent(fmt.Errorf("%w: want %d, node reports %s", ErrChainMismatch, want, got))
		}
		client = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logrus.WithField("chain", want.String()).Warnf("rpc not ready, retrying in %s: %v", wait.Round(time.Millisecond), err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, err
	}
	return client, nil
}

// BalanceReader is the slice of ethclient.Client used by NativeBalance.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

func NativeBalance(ctx context.Context, client BalanceReader, owner common.Address) (*big.Int, error) {
	if (owner == common.Address{}) {
		return nil, fmt.Errorf("owner address missing")
	}
	bal, err := client.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", owner.Hex(), err)
	}
	return bal, nil
}

const etherDecimals = 18

// FormatEther renders a wei amount in ether without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}

// ParseEther converts a decimal ether amount ("0.05") into wei.
func ParseEther(raw string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid ether amount %q: %w", raw, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid ether amount %q: negative", raw)
	}
	wei := d.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("invalid ether amount %q: more than %d decimals", raw, etherDecimals)
	}
	return wei.BigInt(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
