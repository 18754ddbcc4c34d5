package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/serpius-project/wedx-go/internal/chain"
	"github.com/serpius-project/wedx-go/internal/config"
	"github.com/serpius-project/wedx-go/internal/eventlog"
	"github.com/serpius-project/wedx-go/internal/marketdata"
	"github.com/serpius-project/wedx-go/internal/metrics"
	"github.com/serpius-project/wedx-go/internal/network"
	"github.com/serpius-project/wedx-go/internal/rebalance"
	"github.com/serpius-project/wedx-go/internal/wedx"
)

const dialTimeout = 2 * time.Minute

func deployment(cfg config.Config) (network.Deployment, error) {
	nf, err := network.Load(cfg.NetworkData)
	if err != nil {
		return network.Deployment{}, err
	}
	return nf.For(cfg.Chain)
}

func dial(ctx context.Context, cfg config.Config) (*ethclient.Client, error) {
	rpcURL, err := chain.RPCURL(cfg.Chain, cfg.RPC)
	if err != nil {
		return nil, err
	}
	return chain.DialWithBackoff(ctx, rpcURL, cfg.Chain.ID, chain.DialOptions{MaxElapsed: dialTimeout})
}

// connect dials the chain and binds the protocol contracts for the user.
// The returned client must be closed by the caller.
func connect(ctx context.Context, cfg *config.Config) (*ethclient.Client, *wedx.Client, error) {
	if err := cfg.RequireUser(); err != nil {
		return nil, nil, err
	}
	dep, err := deployment(*cfg)
	if err != nil {
		return nil, nil, err
	}
	signer, err := cfg.Signer()
	if err != nil {
		return nil, nil, fmt.Errorf("USER_PRIVATE_KEY: %w", err)
	}

	ec, err := dial(ctx, *cfg)
	if err != nil {
		return nil, nil, err
	}
	client, err := wedx.NewClient(ctx, ec, dep, cfg.User, signer)
	if err != nil {
		ec.Close()
		return nil, nil, err
	}
	log.Infof("chain=%s user=%s group=%s signer=%v", cfg.Chain.Name, cfg.User.Hex(), dep.Group.Hex(), client.CanTransact())
	return ec, client, nil
}

// requireSigner is used by commands that always send a transaction.
func requireSigner(client *wedx.Client) error {
	if !client.CanTransact() {
		return errors.New("USER_PRIVATE_KEY required for this command")
	}
	return nil
}

// accountResolver is the part of *wedx.Client needed to prepare the account.
type accountResolver interface {
	PortfolioAddress(ctx context.Context) (common.Address, error)
	EnsureAccount(ctx context.Context) (common.Address, bool, error)
}

// prepareAccount creates the user's portfolio account when trading is
// enabled and none exists. In dry-run it only warns, since cycles fail
// until the account exists.
func prepareAccount(ctx context.Context, client accountResolver, user common.Address, enableTrading bool) error {
	if !enableTrading {
		addr, err := client.PortfolioAddress(ctx)
		if err != nil {
			return err
		}
		if (addr == common.Address{}) {
			log.Warnf("%s has no portfolio account; cycles will fail until one is created with `wedx account create`", user.Hex())
		}
		return nil
	}

	addr, created, err := client.EnsureAccount(ctx)
	observeCreate(created, err)
	if err != nil {
		return fmt.Errorf("create portfolio account: %w", err)
	}
	if created {
		log.Infof("portfolio account created: %s", addr.Hex())
	}
	return nil
}

func observeCreate(created bool, err error) {
	if created || err != nil {
		metrics.ObserveTx("createPortfolio", err)
	}
}

// marketSource builds the exchange data feed, behind a redis cache when one
// is configured. The returned func releases the cache connection.
func marketSource(ctx context.Context, cfg config.Config) (marketdata.Feed, func(), error) {
	mc, err := marketdata.NewClient(cfg.ExchangeDataURL,
		marketdata.WithRateLimit(cfg.FetchInterval),
		marketdata.WithObserver(metrics.ObserveMarketData),
	)
	if err != nil {
		return marketdata.Feed{}, nil, err
	}
	if cfg.RedisURL == "" {
		return marketdata.Feed{Source: mc}, func() {}, nil
	}

	cache, err := marketdata.NewRedisCache(cfg.RedisURL)
	if err != nil {
		return marketdata.Feed{}, nil, err
	}
	if err := cache.Ping(ctx); err != nil {
		log.WithError(err).Warn("redis unreachable; exchange data will be fetched directly until it recovers")
	}
	src := marketdata.NewCachedSource(mc, cache, "", cfg.CacheTTL)
	return marketdata.Feed{Source: src}, func() { _ = cache.Close() }, nil
}

// newAgent wires a rebalance agent for the configured user. cleanup closes
// the RPC client, the cache and the event log.
func newAgent(ctx context.Context, cfg *config.Config, opts ...rebalance.Option) (*rebalance.Agent, func(), error) {
	ec, client, err := connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := prepareAccount(ctx, client, cfg.User, cfg.EnableTrading); err != nil {
		ec.Close()
		return nil, nil, err
	}
	feed, closeFeed, err := marketSource(ctx, *cfg)
	if err != nil {
		ec.Close()
		return nil, nil, err
	}
	events := eventlog.New(cfg.EventLog, config.EventLogRotation)

	opts = append([]rebalance.Option{
		rebalance.WithEventLog(events),
		rebalance.WithStateFile(cfg.StateFile),
	}, opts...)
	agent, err := rebalance.NewAgent(cfg.Rebalance(), rebalance.FromClient(client), feed, opts...)
	cleanup := func() {
		if err := events.Close(); err != nil {
			log.WithError(err).Warn("event log close failed")
		}
		closeFeed()
		ec.Close()
	}
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return agent, cleanup, nil
}
