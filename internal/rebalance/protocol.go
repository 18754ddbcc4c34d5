package rebalance

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/serpius-project/wedx-go/internal/marketdata"
	"github.com/serpius-project/wedx-go/internal/wedx"
)

// PortfolioAccount is the trader's on-chain portfolio. *wedx.Portfolio
// implements it.
type PortfolioAccount interface {
	Address() common.Address
	ActualDistribution(ctx context.Context) ([]int64, error)
	MinPercAllowance(ctx context.Context) (int64, error)
	Addresses(ctx context.Context) ([]common.Address, error)
	SetPortfolio(ctx context.Context, opts *bind.TransactOpts, assets []common.Address, shares []int64) (*types.Receipt, error)
	SupplyLendTokens(ctx context.Context, opts *bind.TransactOpts, assets []common.Address) (*types.Receipt, error)
	WithdrawLendTokens(ctx context.Context, opts *bind.TransactOpts, assets []common.Address) (*types.Receipt, error)
	RankMe(ctx context.Context, opts *bind.TransactOpts) (*types.Receipt, error)
}

// Ranking is the asset manager's view of the trader. *wedx.Manager
// implements it.
type Ranking interface {
	TraderScore(ctx context.Context, user common.Address) (*big.Int, error)
	TraderInteractions(ctx context.Context, user common.Address) (int, error)
	RequiredInteractions(ctx context.Context) (int64, error)
}

type Protocol interface {
	User() common.Address
	NativeWrapper() common.Address
	Portfolio(ctx context.Context) (PortfolioAccount, error)
	Ranking() Ranking
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// MarketSource lists ranked assets per chain. marketdata.Feed implements it.
type MarketSource interface {
	Assets(ctx context.Context, chainName string) ([]marketdata.Asset, error)
}

type clientProtocol struct {
	c *wedx.Client
}

// FromClient adapts a wedx.Client to Protocol.
func FromClient(c *wedx.Client) Protocol {
	return clientProtocol{c: c}
}

func (p clientProtocol) User() common.Address { return p.c.User() }

func (p clientProtocol) NativeWrapper() common.Address { return p.c.Deployment().NativeWrapper }

func (p clientProtocol) Portfolio(ctx context.Context) (PortfolioAccount, error) {
	pf, err := p.c.Portfolio(ctx)
	if err != nil {
		return nil, err
	}
	return pf, nil
}

func (p clientProtocol) Ranking() Ranking { return p.c.Manager() }

func (p clientProtocol) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return p.c.TransactOpts(ctx)
}
