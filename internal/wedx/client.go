package wedx

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/serpius-project/wedx-go/internal/network"
)

var ErrNoAccount = errors.New("user does not have a portfolio account")

// Client ties the contract bindings of one deployment to one trader.
type Client struct {
	deployment network.Deployment
	backend    Backend
	user       common.Address
	signer     *Signer

	group    *Group
	deployer *Deployer
	manager  *Manager
}

// NewClient resolves the deployer and manager through the group contract.
// signer may be nil for read-only use; when set it must match user.
func NewClient(ctx context.Context, backend Backend, d network.Deployment, user common.Address, signer *Signer) (*Client, error) {
	if (user == common.Address{}) {
		return nil, fmt.Errorf("user address missing")
	}
	if signer != nil && signer.Address() != user {
		return nil, fmt.Errorf("signer %s does not match user %s", signer.Address().Hex(), user.Hex())
	}

	group, err := NewGroup(d.Group, d.GroupABI, backend)
	if err != nil {
		return nil, err
	}
	deployerAddr, err := group.DeployerProAddress(ctx)
	if err != nil {
		return nil, err
	}
	if (deployerAddr == common.Address{}) {
		return nil, fmt.Errorf("group %s returned zero deployer address", d.Group.Hex())
	}
	managerAddr, err := group.AssetManagerAddress(ctx)
	if err != nil {
		return nil, err
	}
	if (managerAddr == common.Address{}) {
		return nil, fmt.Errorf("group %s returned zero manager address", d.Group.Hex())
	}

	deployer, err := NewDeployer(deployerAddr, d.DeployerABI, backend)
	if err != nil {
		return nil, err
	}
	manager, err := NewManager(managerAddr, d.ManagerABI, backend)
	if err != nil {
		return nil, err
	}

	return &Client{
		deployment: d,
		backend:    backend,
		user:       user,
		signer:     signer,
		group:      group,
		deployer:   deployer,
		manager:    manager,
	}, nil
}

func (c *Client) User() common.Address { return c.user }

func (c *Client) Deployment() network.Deployment { return c.deployment }

func (c *Client) Manager() *Manager { return c.manager }

func (c *Client) CanTransact() bool { return c.signer != nil }

func (c *Client) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.signer == nil {
		return nil, ErrReadOnly
	}
	return c.signer.TransactOpts(ctx)
}

// PortfolioAddress returns the user's account or the zero address.
func (c *Client) PortfolioAddress(ctx context.Context) (common.Address, error) {
	return c.deployer.PortfolioAddress(ctx, c.user)
}

// Portfolio binds the user's account. It fails with ErrNoAccount when the
// user has not created one.
func (c *Client) Portfolio(ctx context.Context) (*Portfolio, error) {
	addr, err := c.PortfolioAddress(ctx)
	if err != nil {
		return nil, err
	}
	if (addr == common.Address{}) {
		return nil, fmt.Errorf("%w: %s", ErrNoAccount, c.user.Hex())
	}
	return NewPortfolio(addr, c.deployment.PortfolioABI, c.backend)
}

// EnsureAccount returns the user's account, creating it first if needed.
func (c *Client) EnsureAccount(ctx context.Context) (addr common.Address, created bool, err error) {
	addr, err = c.PortfolioAddress(ctx)
	if err != nil {
		return common.Address{}, false, err
	}
	if (addr != common.Address{}) {
		return addr, false, nil
	}

	opts, err := c.TransactOpts(ctx)
	if err != nil {
		return common.Address{}, false, err
	}
	if _, err := c.deployer.CreatePortfolio(ctx, opts); err != nil {
		return common.Address{}, false, err
	}

	addr, err = c.PortfolioAddress(ctx)
	if err != nil {
		return common.Address{}, true, err
	}
	if (addr == common.Address{}) {
		return common.Address{}, true, fmt.Errorf("portfolio still missing after createProPortfolio")
	}
	return addr, true, nil
}
