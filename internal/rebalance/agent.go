// Package rebalance runs the trading cycle: read the portfolio account,
// build a target from market data, compare the two and, when they drift
// apart, move the account to the target.
package rebalance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/serpius-project/wedx-go/internal/chain"
	"github.com/serpius-project/wedx-go/internal/distro"
	"github.com/serpius-project/wedx-go/internal/ethutil"
	"github.com/serpius-project/wedx-go/internal/eventlog"
	"github.com/serpius-project/wedx-go/internal/metrics"
	"github.com/serpius-project/wedx-go/internal/portfolio"
	"github.com/serpius-project/wedx-go/internal/state"
)

// Config selects the chain, the target strategy and whether to trade.
type Config struct {
	Chain    chain.Info
	Strategy portfolio.Strategy
	TopN     int
	Exclude  map[common.Address]struct{}

	// EnableTrading submits transactions; otherwise cycles stop at the plan.
	EnableTrading bool
	// StepDelay pauses between the rebalance transactions.
	StepDelay time.Duration
}

// Outcome is how a cycle ended.
type Outcome string

const (
	OutcomeUnchanged  Outcome = "unchanged"
	OutcomePlanned    Outcome = "planned"
	OutcomeRebalanced Outcome = "rebalanced"
	OutcomeFailed     Outcome = "failed"
)

// TxRecord is one transaction sent during a cycle.
type TxRecord struct {
	Method string `json:"method"`
	Hash   string `json:"hash"`
}

// CycleResult describes one run of the cycle.
type CycleResult struct {
	ID         string              `json:"id"`
	Chain      string              `json:"chain"`
	Account    string              `json:"account,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	DurationMs int64               `json:"duration_ms"`
	Outcome    Outcome             `json:"outcome"`
	Current    distro.Distribution `json:"current"`
	Target     *portfolio.Target   `json:"target,omitempty"`
	Comparison distro.Comparison   `json:"comparison"`
	Txs        []TxRecord          `json:"txs,omitempty"`
	Ranked     bool                `json:"ranked,omitempty"`
	Score      string              `json:"score,omitempty"`
	Err        string              `json:"err,omitempty"`
}

type cycleEvent struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"`
	Mode  string `json:"mode"`
	CycleResult
}

// Agent runs rebalance cycles for one user's portfolio account.
type Agent struct {
	cfg    Config
	proto  Protocol
	market MarketSource

	events    *eventlog.Writer
	statePath string
	observers []func(CycleResult)
	now       func() time.Time

	mu   sync.RWMutex
	last *CycleResult
	ckpt state.Checkpoint
}

// Option customizes an Agent.
type Option func(*Agent)

// WithEventLog appends every finished cycle to w.
func WithEventLog(w *eventlog.Writer) Option {
	return func(a *Agent) { a.events = w }
}

// WithStateFile persists a checkpoint after every cycle.
func WithStateFile(path string) Option {
	return func(a *Agent) { a.statePath = path }
}

// WithObserver is called with every finished cycle.
func WithObserver(fn func(CycleResult)) Option {
	return func(a *Agent) {
		if fn != nil {
			a.observers = append(a.observers, fn)
		}
	}
}

// NewAgent restores the checkpoint at the state file when it belongs to the
// same chain and user.
func NewAgent(cfg Config, proto Protocol, market MarketSource, opts ...Option) (*Agent, error) {
	if proto == nil || market == nil {
		return nil, errors.New("rebalance: protocol and market source are required")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = portfolio.EqualWeight
	}
	if cfg.TopN <= 0 {
		cfg.TopN = portfolio.DefaultTopN
	}
	a := &Agent{cfg: cfg, proto: proto, market: market, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}

	ckpt, ok, err := state.Load(a.statePath)
	if err != nil {
		return nil, err
	}
	if ok && ckpt.Matches(int64(cfg.Chain.ID), proto.User().Hex()) {
		a.ckpt = ckpt
	} else {
		a.ckpt = state.Checkpoint{ChainID: int64(cfg.Chain.ID), User: proto.User().Hex()}
	}
	return a, nil
}

// Last returns the most recent cycle, if any.
func (a *Agent) Last() (CycleResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return CycleResult{}, false
	}
	return *a.last, true
}

func (a *Agent) Checkpoint() state.Checkpoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ckpt
}

// Plan builds the target portfolio from current market data without
// touching the chain.
func (a *Agent) Plan(ctx context.Context) (portfolio.Target, error) {
	assets, err := a.market.Assets(ctx, a.cfg.Chain.Name)
	if err != nil {
		return portfolio.Target{}, fmt.Errorf("market data: %w", err)
	}
	return portfolio.Build(assets, portfolio.Options{
		Strategy: a.cfg.Strategy,
		TopN:     a.cfg.TopN,
		Native:   a.proto.NativeWrapper(),
		Exclude:  a.cfg.Exclude,
	})
}

// RunCycle performs one cycle. The returned result is also recorded when the
// cycle fails.
func (a *Agent) RunCycle(ctx context.Context) (CycleResult, error) {
	res := CycleResult{
		ID:        uuid.NewString(),
		Chain:     a.cfg.Chain.Name,
		StartedAt: a.now().UTC(),
	}
	log := logrus.WithFields(logrus.Fields{"prefix": "rebalance", "cycle": res.ID})

	err := a.runCycle(ctx, log, &res)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err.Error()
		log.WithError(err).Warn("cycle failed")
	}
	res.DurationMs = a.now().Sub(res.StartedAt).Milliseconds()
	a.finish(log, res)
	return res, err
}

func (a *Agent) runCycle(ctx context.Context, log *logrus.Entry, res *CycleResult) error {
	account, err := a.proto.Portfolio(ctx)
	if err != nil {
		return err
	}
	res.Account = account.Address().Hex()

	shares, err := account.ActualDistribution(ctx)
	if err != nil {
		return err
	}
	held, err := account.Addresses(ctx)
	if err != nil {
		return err
	}
	res.Current = distro.NewDistribution(ethutil.HexStrings(held), shares)

	target, err := a.Plan(ctx)
	if err != nil {
		return err
	}
	res.Target = &target

	threshold, err := account.MinPercAllowance(ctx)
	if err != nil {
		return err
	}

	cmp, err := distro.Compare(res.Current, target.Distribution(), threshold)
	if err != nil {
		return fmt.Errorf("compare distributions: %w", err)
	}
	res.Comparison = cmp
	metrics.DistributionDiff.Set(float64(cmp.TotalDiff))
	metrics.DistributionThreshold.Set(float64(threshold))
	log.Infof("distributions differ by %.4f%%, allowed %.4f%%: update needed=%v", cmp.DiffPercent(), cmp.ThresholdPercent(), cmp.Different)

	switch {
	case !cmp.Different:
		res.Outcome = OutcomeUnchanged
	case !a.cfg.EnableTrading:
		res.Outcome = OutcomePlanned
		log.WithField("assets", len(target.Assets)).Info("dry-run: set ENABLE_TRADING=true (or --enable-trading) to submit transactions")
	default:
		if err := a.rebalance(ctx, log, account, held, target, res); err != nil {
			a.reportScore(ctx, log, res)
			return err
		}
		res.Outcome = OutcomeRebalanced
	}

	a.reportScore(ctx, log, res)
	return nil
}

// reportScore records the trader score. A failed read only logs a warning.
func (a *Agent) reportScore(ctx context.Context, log *logrus.Entry, res *CycleResult) {
	score, err := a.proto.Ranking().TraderScore(ctx, a.proto.User())
	if err != nil {
		log.WithError(err).Warn("trader score unavailable")
		return
	}
	res.Score = score.String()
	metrics.SetScore(score)
	log.Infof("current score: %s", res.Score)
}

func (a *Agent) rebalance(ctx context.Context, log *logrus.Entry, account PortfolioAccount, held []common.Address, target portfolio.Target, res *CycleResult) error {
	opts, err := a.proto.TransactOpts(ctx)
	if err != nil {
		return err
	}

	step := func(method string, send func() (*types.Receipt, error)) error {
		receipt, err := send()
		metrics.ObserveTx(method, err)
		if receipt != nil {
			res.Txs = append(res.Txs, TxRecord{Method: method, Hash: receipt.TxHash.Hex()})
		}
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		log.WithFields(logrus.Fields{"method": method, "tx": receipt.TxHash.Hex()}).Info("mined")
		return sleepCtx(ctx, a.cfg.StepDelay)
	}

	if len(held) > 0 {
		if err := step("withdrawLendTokens", func() (*types.Receipt, error) {
			return account.WithdrawLendTokens(ctx, opts, held)
		}); err != nil {
			return err
		}
	}
	if err := step("setPortfolio", func() (*types.Receipt, error) {
		return account.SetPortfolio(ctx, opts, target.Assets, target.Shares)
	}); err != nil {
		return err
	}
	if err := step("supplyLendTokens", func() (*types.Receipt, error) {
		return account.SupplyLendTokens(ctx, opts, target.Assets)
	}); err != nil {
		return err
	}

	return a.maybeRank(ctx, log, account, opts, res)
}

// maybeRank submits rankMe once the trader holds exactly the number of
// scoring points the manager requires.
func (a *Agent) maybeRank(ctx context.Context, log *logrus.Entry, account PortfolioAccount, opts *bind.TransactOpts, res *CycleResult) error {
	ranking := a.proto.Ranking()
	have, err := ranking.TraderInteractions(ctx, a.proto.User())
	if err != nil {
		return err
	}
	need, err := ranking.RequiredInteractions(ctx)
	if err != nil {
		return err
	}
	log.Infof("interactions %d/%d", have, need)
	if int64(have) != need {
		return nil
	}

	receipt, err := account.RankMe(ctx, opts)
	metrics.ObserveTx("rankMe", err)
	if receipt != nil {
		res.Txs = append(res.Txs, TxRecord{Method: "rankMe", Hash: receipt.TxHash.Hex()})
	}
	if err != nil {
		return fmt.Errorf("rankMe: %w", err)
	}
	res.Ranked = true
	return nil
}

func (a *Agent) finish(log *logrus.Entry, res CycleResult) {
	metrics.CyclesTotal.WithLabelValues(string(res.Outcome)).Inc()
	metrics.CycleDuration.Observe(float64(res.DurationMs) / 1000)

	if err := a.events.Write(cycleEvent{
		TsMs:        a.now().UnixMilli(),
		Event:       "cycle",
		Mode:        mode(a.cfg.EnableTrading),
		CycleResult: res,
	}); err != nil {
		log.WithError(err).Warn("event log write failed")
	}

	a.mu.Lock()
	a.last = &res
	a.ckpt.Account = res.Account
	a.ckpt.LastCycleID = res.ID
	a.ckpt.LastCycleAt = res.StartedAt
	a.ckpt.LastCycleOutcome = string(res.Outcome)
	if res.Target != nil {
		a.ckpt.TargetAssets = ethutil.HexStrings(res.Target.AssetsWithNative())
		a.ckpt.TargetShares = append([]int64(nil), res.Target.Shares...)
	}
	if len(res.Txs) > 0 {
		a.ckpt.LastRebalanceAt = res.StartedAt
		a.ckpt.LastRebalanceTxs = make([]string, len(res.Txs))
		for i, tx := range res.Txs {
			a.ckpt.LastRebalanceTxs[i] = tx.Hash
		}
	}
	ckpt := a.ckpt
	observers := a.observers
	a.mu.Unlock()

	if err := state.Save(a.statePath, ckpt); err != nil {
		log.WithError(err).Warn("checkpoint save failed")
	}
	for _, fn := range observers {
		fn(res)
	}
}

func mode(enableTrading bool) string {
	if enableTrading {
		return "live"
	}
	return "dry"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
