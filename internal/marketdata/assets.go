package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/valyala/fastjson"
)

var ErrChainNotFound = errors.New("exchange data has no entry for chain")

// Asset is one entry of a chain's asset list.
type Asset struct {
	Address common.Address
	// TVLUSD is zero when HasTVL is false.
	TVLUSD decimal.Decimal
	HasTVL bool
	Symbol string
}

// ParseAssets returns the assets listed under chainName in document order.
// The order carries the ranking, so the document is walked with fastjson
// instead of being decoded into a map.
func ParseAssets(raw []byte, chainName string) ([]Asset, error) {
	var p fastjson.Parser
	doc, err := p.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("exchange data parse: %w", err)
	}
	v := doc.Get(chainName)
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil, fmt.Errorf("%w %s", ErrChainNotFound, chainName)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("exchange data %s: %w", chainName, err)
	}

	out := make([]Asset, 0, obj.Len())
	var visitErr error
	obj.Visit(func(key []byte, item *fastjson.Value) {
		if visitErr != nil {
			return
		}
		a, err := parseAsset(string(key), item)
		if err != nil {
			visitErr = fmt.Errorf("exchange data %s: %w", chainName, err)
			return
		}
		out = append(out, a)
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return out, nil
}

func parseAsset(key string, item *fastjson.Value) (Asset, error) {
	key = strings.TrimSpace(key)
	if !common.IsHexAddress(key) {
		return Asset{}, fmt.Errorf("invalid asset address %q", key)
	}
	a := Asset{Address: common.HexToAddress(key)}
	if item == nil || item.Type() != fastjson.TypeObject {
		return a, nil
	}
	a.Symbol = string(item.GetStringBytes("symbol"))

	tvl := item.Get("totalValueLockedUSD")
	if tvl == nil {
		return a, nil
	}
	var text string
	switch tvl.Type() {
	case fastjson.TypeNumber:
		text = tvl.String()
	case fastjson.TypeString:
		text = strings.TrimSpace(string(tvl.GetStringBytes()))
	case fastjson.TypeNull:
		return a, nil
	default:
		return Asset{}, fmt.Errorf("asset %s: totalValueLockedUSD has type %s", key, tvl.Type())
	}
	if text == "" {
		return a, nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return Asset{}, fmt.Errorf("asset %s: totalValueLockedUSD %q: %w", key, text, err)
	}
	a.TVLUSD = d
	a.HasTVL = true
	return a, nil
}

// Feed turns a Source into per-chain asset lists.
type Feed struct {
	Source Source
}

func (f Feed) Assets(ctx context.Context, chainName string) ([]Asset, error) {
	if f.Source == nil {
		return nil, fmt.Errorf("exchange data source nil")
	}
	raw, err := f.Source.FetchRaw(ctx)
	if err != nil {
		return nil, err
	}
	return ParseAssets(raw, chainName)
}
