package wedx

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serpius-project/wedx-go/internal/chain"
	"github.com/serpius-project/wedx-go/internal/network"
)

var (
	groupAddr     = common.HexToAddress("0x1000000000000000000000000000000000000001")
	deployerAddr  = common.HexToAddress("0x1000000000000000000000000000000000000002")
	managerAddr   = common.HexToAddress("0x1000000000000000000000000000000000000003")
	portfolioAddr = common.HexToAddress("0x1000000000000000000000000000000000000004")
	wethAddr      = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	usdcAddr      = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
)

type fixture struct {
	backend *fakeBackend
	signer  *Signer
	client  *Client
}

func newFixture(t *testing.T, portfolioABI string) *fixture {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := NewSigner("0x"+common.Bytes2Hex(crypto.FromECDSA(key)), chain.Arbitrum)
	require.NoError(t, err)

	b := newFakeBackend()
	b.deploy(groupAddr, groupABIJSON)
	b.deploy(deployerAddr, deployerABIJSON)
	b.deploy(managerAddr, managerABIJSON)
	if portfolioABI == "" {
		portfolioABI = portfolioABIJSON
	}
	b.deploy(portfolioAddr, portfolioABI)

	b.set(groupAddr, "getDeployerProAddress", deployerAddr)
	b.set(groupAddr, "getAssetManagerAddress", managerAddr)
	b.set(deployerAddr, "getUserProPortfolioAddress", portfolioAddr)

	info, _ := chain.Lookup(chain.Arbitrum)
	d := network.Deployment{Chain: info, Group: groupAddr, NativeWrapper: wethAddr, PortfolioABI: portfolioABI}
	client, err := NewClient(context.Background(), b, d, signer.Address(), signer)
	require.NoError(t, err)

	return &fixture{backend: b, signer: signer, client: client}
}

func TestClientReads(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	f.backend.set(portfolioAddr, "getActualDistribution", []*big.Int{big.NewInt(600_000), big.NewInt(400_000), big.NewInt(0)})
	f.backend.set(portfolioAddr, "getMinPercAllowance", big.NewInt(10_000))
	f.backend.set(portfolioAddr, "getAddresses", []common.Address{wethAddr, usdcAddr})
	f.backend.set(managerAddr, "getTraderScore", big.NewInt(-42))
	f.backend.set(managerAddr, "getTraderData", portfolioAddr, big.NewInt(1), big.NewInt(2), []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)})
	f.backend.set(managerAddr, "getNPoints", big.NewInt(3))

	p, err := f.client.Portfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, portfolioAddr, p.Address())

	shares, err := p.ActualDistribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{600_000, 400_000, 0}, shares)

	threshold, err := p.MinPercAllowance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), threshold)

	addrs, err := p.Addresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{wethAddr, usdcAddr}, addrs)

	score, err := f.client.Manager().TraderScore(ctx, f.client.User())
	require.NoError(t, err)
	assert.Equal(t, int64(-42), score.Int64())

	n, err := f.client.Manager().TraderInteractions(ctx, f.client.User())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	required, err := f.client.Manager().RequiredInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), required)
}

func TestClientNoAccount(t *testing.T) {
	f := newFixture(t, "")
	f.backend.set(deployerAddr, "getUserProPortfolioAddress", common.Address{})

	_, err := f.client.Portfolio(context.Background())
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestEnsureAccountCreates(t *testing.T) {
	f := newFixture(t, "")
	f.backend.set(deployerAddr, "getUserProPortfolioAddress", common.Address{})
	f.backend.onSend = func(call sentCall) {
		if call.Method == "createProPortfolio" {
			f.backend.set(deployerAddr, "getUserProPortfolioAddress", portfolioAddr)
		}
	}

	addr, created, err := f.client.EnsureAccount(context.Background())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, portfolioAddr, addr)

	addr, created, err = f.client.EnsureAccount(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, portfolioAddr, addr)
	assert.Len(t, f.backend.calls(), 1)
}

func TestSetPortfolioAndLending(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	p, err := f.client.Portfolio(ctx)
	require.NoError(t, err)
	opts, err := f.client.TransactOpts(ctx)
	require.NoError(t, err)

	assets := []common.Address{wethAddr, usdcAddr}
	receipt, err := p.SetPortfolio(ctx, opts, assets, []int64{500_000, 500_000, 0})
	require.NoError(t, err)
	assert.NotNil(t, receipt)

	_, err = p.SupplyLendTokens(ctx, opts, assets)
	require.NoError(t, err)
	_, err = p.WithdrawLendTokens(ctx, opts, assets)
	require.NoError(t, err)

	calls := f.backend.calls()
	require.Len(t, calls, 3)

	assert.Equal(t, "setPortfolio", calls[0].Method)
	assert.Equal(t, assets, calls[0].Args[0])
	assert.Equal(t, []int64{500_000, 500_000, 0}, ints(t, calls[0].Args[1]))

	assert.Equal(t, "supplyLendTokens", calls[1].Method)
	assert.Equal(t, []int64{0, 0}, ints(t, calls[1].Args[1]))

	assert.Equal(t, "withdrawLendTokens", calls[2].Method)
}

func TestSupplyLendTokensNarrowProtocolIDs(t *testing.T) {
	custom := strings.Replace(portfolioABIJSON, `{"name":"protocolId","type":"uint256[]"}`, `{"name":"protocolId","type":"uint8[]"}`, 1)
	require.NotEqual(t, portfolioABIJSON, custom)

	f := newFixture(t, custom)
	ctx := context.Background()
	p, err := f.client.Portfolio(ctx)
	require.NoError(t, err)
	opts, err := f.client.TransactOpts(ctx)
	require.NoError(t, err)

	_, err = p.SupplyLendTokens(ctx, opts, []common.Address{wethAddr})
	require.NoError(t, err)

	calls := f.backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []uint8{0}, calls[0].Args[1])
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	p, err := f.client.Portfolio(ctx)
	require.NoError(t, err)
	opts, err := f.client.TransactOpts(ctx)
	require.NoError(t, err)

	wei, _ := chain.ParseEther("0.01")
	_, err = p.Deposit(ctx, opts, wei)
	require.NoError(t, err)
	assert.Nil(t, opts.Value, "caller opts must not be mutated")

	_, err = p.Withdraw(ctx, opts, 250_000)
	require.NoError(t, err)

	calls := f.backend.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "deposit", calls[0].Method)
	assert.Equal(t, 0, calls[0].Value.Cmp(wei))
	assert.Equal(t, "withdraw", calls[1].Method)
	assert.Equal(t, 0, big.NewInt(250_000).Cmp(calls[1].Args[0].(*big.Int)))

	_, err = p.Deposit(ctx, opts, big.NewInt(0))
	assert.Error(t, err)
	_, err = p.Withdraw(ctx, opts, 0)
	assert.Error(t, err)
}

func TestRevertedTransaction(t *testing.T) {
	f := newFixture(t, "")
	f.backend.revert["rankMe"] = true
	ctx := context.Background()

	p, err := f.client.Portfolio(ctx)
	require.NoError(t, err)
	opts, err := f.client.TransactOpts(ctx)
	require.NoError(t, err)

	_, err = p.RankMe(ctx, opts)
	var rerr *RevertError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "rankMe", rerr.Method)
	assert.Equal(t, "portfolio", rerr.Contract)
}

func TestReadOnlyClient(t *testing.T) {
	f := newFixture(t, "")
	ro, err := NewClient(context.Background(), f.backend, f.client.Deployment(), f.signer.Address(), nil)
	require.NoError(t, err)
	assert.False(t, ro.CanTransact())

	_, err = ro.TransactOpts(context.Background())
	assert.ErrorIs(t, err, ErrReadOnly)

	p, err := ro.Portfolio(context.Background())
	require.NoError(t, err)
	_, err = p.RankMe(context.Background(), nil)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestNewClientRejectsForeignSigner(t *testing.T) {
	f := newFixture(t, "")
	other := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	_, err := NewClient(context.Background(), f.backend, f.client.Deployment(), other, f.signer)
	assert.Error(t, err)
}

func TestNewSigner(t *testing.T) {
	_, err := NewSigner("", chain.Base)
	assert.Error(t, err)
	_, err = NewSigner("0xnothex", chain.Base)
	assert.Error(t, err)
}

func TestInteractionCountStructOutput(t *testing.T) {
	data := struct {
		Portfolio  common.Address
		LastUpdate *big.Int
		Score      *big.Int
		Points     []*big.Int
	}{Points: []*big.Int{big.NewInt(1), big.NewInt(2)}}

	n, err := interactionCount([]interface{}{data})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = interactionCount([]interface{}{big.NewInt(1)})
	assert.Error(t, err)
}

func TestIntArrayArg(t *testing.T) {
	uint256s, _ := abi.NewType("uint256[]", "", nil)
	uint8s, _ := abi.NewType("uint8[]", "", nil)
	int32s, _ := abi.NewType("int32[2]", "", nil)
	scalar, _ := abi.NewType("uint256", "", nil)

	got, err := intArrayArg(uint256s, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []*big.Int{big.NewInt(1), big.NewInt(2)}, got)

	got, err = intArrayArg(int32s, []int64{-1, 7})
	require.NoError(t, err)
	assert.Equal(t, reflect.Array, reflect.TypeOf(got).Kind())

	_, err = intArrayArg(uint8s, []int64{300})
	assert.Error(t, err)
	_, err = intArrayArg(uint256s, []int64{-1})
	assert.Error(t, err)
	_, err = intArrayArg(int32s, []int64{1})
	assert.Error(t, err)
	_, err = intArrayArg(scalar, []int64{1})
	assert.Error(t, err)
}

func TestToInt64Saturates(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	n, err := toInt64(huge)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<63-1), n)

	n, err = toInt64(uint32(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = toInt64("5")
	assert.True(t, errors.Is(err, errNotInteger))
}

// ints flattens unpacked integer arrays; big.Int zero values differ
// internally between constructors, so compare them as int64.
func ints(t *testing.T, v interface{}) []int64 {
	t.Helper()
	out, err := toInt64Slice(v)
	require.NoError(t, err)
	return out
}
