package wedx

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var portfolioMethods = []string{
	"deposit", "withdraw", "setPortfolio", "getActualDistribution", "getMinPercAllowance",
	"getAddresses", "supplyLendTokens", "withdrawLendTokens", "rankMe",
}

// Portfolio is a user's WedX pro portfolio account.
type Portfolio struct{ c *contract }

func NewPortfolio(address common.Address, abiJSON string, backend Backend) (*Portfolio, error) {
	parsed, err := parseABI("portfolio", abiJSON, portfolioABIJSON)
	if err != nil {
		return nil, err
	}
	if err := requireMethods("portfolio", parsed, portfolioMethods...); err != nil {
		return nil, err
	}
	return &Portfolio{c: newContract("portfolio", address, parsed, backend)}, nil
}

func (p *Portfolio) Address() common.Address { return p.c.address }

// Deposit sends wei of native currency into the account.
func (p *Portfolio) Deposit(ctx context.Context, opts *bind.TransactOpts, wei *big.Int) (*types.Receipt, error) {
	if wei == nil || wei.Sign() <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive")
	}
	if opts == nil {
		return nil, fmt.Errorf("portfolio.deposit: %w", ErrReadOnly)
	}
	o := *opts
	o.Value = new(big.Int).Set(wei)
	return p.c.transact(ctx, &o, "deposit")
}

// Withdraw redeems percAmount of the account, expressed in distro.Norm units.
func (p *Portfolio) Withdraw(ctx context.Context, opts *bind.TransactOpts, percAmount int64) (*types.Receipt, error) {
	if percAmount <= 0 {
		return nil, fmt.Errorf("withdraw amount must be positive, got %d", percAmount)
	}
	return p.c.transact(ctx, opts, "withdraw", big.NewInt(percAmount))
}

// SetPortfolio submits a new target. shares has one more entry than assets:
// the last share is the native slot.
func (p *Portfolio) SetPortfolio(ctx context.Context, opts *bind.TransactOpts, assets []common.Address, shares []int64) (*types.Receipt, error) {
	t, err := methodInput(p.c.abi, "setPortfolio", 1)
	if err != nil {
		return nil, err
	}
	arg, err := intArrayArg(t, shares)
	if err != nil {
		return nil, fmt.Errorf("setPortfolio shares: %w", err)
	}
	return p.c.transact(ctx, opts, "setPortfolio", assets, arg)
}

// ActualDistribution returns the current shares, native slot last.
func (p *Portfolio) ActualDistribution(ctx context.Context) ([]int64, error) {
	vals, err := p.c.call(ctx, "getActualDistribution")
	if err != nil {
		return nil, err
	}
	v, err := single(vals, "getActualDistribution")
	if err != nil {
		return nil, err
	}
	out, err := toInt64Slice(v)
	if err != nil {
		return nil, fmt.Errorf("getActualDistribution: %w", err)
	}
	return out, nil
}

// MinPercAllowance is the rebalance threshold in distro.Norm units.
func (p *Portfolio) MinPercAllowance(ctx context.Context) (int64, error) {
	vals, err := p.c.call(ctx, "getMinPercAllowance")
	if err != nil {
		return 0, err
	}
	v, err := single(vals, "getMinPercAllowance")
	if err != nil {
		return 0, err
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("getMinPercAllowance: %w", err)
	}
	return n, nil
}

// Addresses returns the assets the current shares refer to, in share order,
// native wrapper included.
func (p *Portfolio) Addresses(ctx context.Context) ([]common.Address, error) {
	vals, err := p.c.call(ctx, "getAddresses")
	if err != nil {
		return nil, err
	}
	return toAddressSlice(vals, "getAddresses")
}

// SupplyLendTokens lends every asset through the default protocol (id 0).
func (p *Portfolio) SupplyLendTokens(ctx context.Context, opts *bind.TransactOpts, assets []common.Address) (*types.Receipt, error) {
	t, err := methodInput(p.c.abi, "supplyLendTokens", 1)
	if err != nil {
		return nil, err
	}
	ids, err := intArrayArg(t, make([]int64, len(assets)))
	if err != nil {
		return nil, fmt.Errorf("supplyLendTokens protocol ids: %w", err)
	}
	return p.c.transact(ctx, opts, "supplyLendTokens", assets, ids)
}

func (p *Portfolio) WithdrawLendTokens(ctx context.Context, opts *bind.TransactOpts, assets []common.Address) (*types.Receipt, error) {
	return p.c.transact(ctx, opts, "withdrawLendTokens", assets)
}

func (p *Portfolio) RankMe(ctx context.Context, opts *bind.TransactOpts) (*types.Receipt, error) {
	return p.c.transact(ctx, opts, "rankMe")
}
