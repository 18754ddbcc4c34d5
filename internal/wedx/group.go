package wedx

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Group is the WedX registry that points at the other protocol contracts.
type Group struct{ c *contract }

func NewGroup(address common.Address, abiJSON string, backend Backend) (*Group, error) {
	parsed, err := parseABI("group", abiJSON, groupABIJSON)
	if err != nil {
		return nil, err
	}
	if err := requireMethods("group", parsed, "getDeployerProAddress", "getAssetManagerAddress"); err != nil {
		return nil, err
	}
	return &Group{c: newContract("group", address, parsed, backend)}, nil
}

func (g *Group) Address() common.Address { return g.c.address }

func (g *Group) DeployerProAddress(ctx context.Context) (common.Address, error) {
	vals, err := g.c.call(ctx, "getDeployerProAddress")
	if err != nil {
		return common.Address{}, err
	}
	return toAddress(vals, "getDeployerProAddress")
}

func (g *Group) AssetManagerAddress(ctx context.Context) (common.Address, error) {
	vals, err := g.c.call(ctx, "getAssetManagerAddress")
	if err != nil {
		return common.Address{}, err
	}
	return toAddress(vals, "getAssetManagerAddress")
}

// Deployer creates and looks up per-user portfolio accounts.
type Deployer struct{ c *contract }

func NewDeployer(address common.Address, abiJSON string, backend Backend) (*Deployer, error) {
	parsed, err := parseABI("deployer", abiJSON, deployerABIJSON)
	if err != nil {
		return nil, err
	}
	if err := requireMethods("deployer", parsed, "getUserProPortfolioAddress", "createProPortfolio"); err != nil {
		return nil, err
	}
	return &Deployer{c: newContract("deployer", address, parsed, backend)}, nil
}

// PortfolioAddress returns the user's portfolio account, or the zero address
// when none exists yet.
func (d *Deployer) PortfolioAddress(ctx context.Context, user common.Address) (common.Address, error) {
	vals, err := d.c.call(ctx, "getUserProPortfolioAddress", user)
	if err != nil {
		return common.Address{}, err
	}
	return toAddress(vals, "getUserProPortfolioAddress")
}

func (d *Deployer) CreatePortfolio(ctx context.Context, opts *bind.TransactOpts) (*types.Receipt, error) {
	return d.c.transact(ctx, opts, "createProPortfolio")
}
