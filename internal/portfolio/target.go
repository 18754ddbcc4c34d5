// Package portfolio builds target allocations from the exchange data feed.
package portfolio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/serpius-project/wedx-go/internal/distro"
	"github.com/serpius-project/wedx-go/internal/ethutil"
	"github.com/serpius-project/wedx-go/internal/marketdata"
)

type Strategy string

const (
	// EqualWeight gives every selected asset the same weight.
	EqualWeight Strategy = "equal"
	// TVLWeight weights every selected asset by its total value locked.
	TVLWeight Strategy = "tvl"
)

const DefaultTopN = 10

var ErrNoAssets = errors.New("no eligible assets")

func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "equal", "ew", "equal-weight":
		return EqualWeight, nil
	case "tvl", "tvlw", "tvl-weight":
		return TVLWeight, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want equal or tvl)", raw)
}

type Options struct {
	Strategy Strategy
	// TopN is how many ranked assets to hold; zero means DefaultTopN.
	TopN int
	// Native is the wrapped native token. It always takes the last slot.
	Native  common.Address
	Exclude map[common.Address]struct{}
}

// Target is a portfolio ready for setPortfolio. Shares has one entry per
// asset plus a final entry for the native slot.
type Target struct {
	Strategy Strategy         `json:"strategy"`
	Assets   []common.Address `json:"assets"`
	Native   common.Address   `json:"native"`
	Shares   []int64          `json:"shares"`
}

// AssetsWithNative lists the assets in share order, native last.
func (t Target) AssetsWithNative() []common.Address {
	out := make([]common.Address, 0, len(t.Assets)+1)
	out = append(out, t.Assets...)
	return append(out, t.Native)
}

func (t Target) Distribution() distro.Distribution {
	return distro.NewDistribution(ethutil.HexStrings(t.AssetsWithNative()), t.Shares)
}

// Build selects the first TopN eligible assets, weights them by strategy and
// normalizes the weights with a zero-weight native slot appended.
func Build(assets []marketdata.Asset, opts Options) (Target, error) {
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	if (opts.Native == common.Address{}) {
		return Target{}, fmt.Errorf("native wrapper address missing")
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = EqualWeight
	}

	selected := make([]marketdata.Asset, 0, topN)
	seen := make(map[common.Address]struct{}, topN)
	for _, a := range assets {
		if len(selected) == topN {
			break
		}
		if a.Address == opts.Native || (a.Address == common.Address{}) {
			continue
		}
		if _, skip := opts.Exclude[a.Address]; skip {
			continue
		}
		if _, dup := seen[a.Address]; dup {
			continue
		}
		seen[a.Address] = struct{}{}
		selected = append(selected, a)
	}
	if len(selected) == 0 {
		return Target{}, ErrNoAssets
	}

	weights := make([]decimal.Decimal, 0, len(selected)+1)
	for _, a := range selected {
		switch strategy {
		case EqualWeight:
			weights = append(weights, decimal.NewFromInt(1))
		case TVLWeight:
			if !a.HasTVL {
				return Target{}, fmt.Errorf("asset %s has no totalValueLockedUSD", a.Address.Hex())
			}
			weights = append(weights, a.TVLUSD)
		default:
			return Target{}, fmt.Errorf("unknown strategy %q", strategy)
		}
	}
	weights = append(weights, decimal.Zero)

	shares, err := distro.NormalizeDecimal(weights)
	if err != nil {
		return Target{}, err
	}
	if distro.Sum(shares) != distro.Norm {
		return Target{}, fmt.Errorf("%w: every selected asset has zero weight", ErrNoAssets)
	}

	out := Target{
		Strategy: strategy,
		Assets:   make([]common.Address, len(selected)),
		Native:   opts.Native,
		Shares:   shares,
	}
	for i, a := range selected {
		out.Assets[i] = a.Address
	}
	return out, nil
}
