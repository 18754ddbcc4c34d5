package wedx

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type sentCall struct {
	To     common.Address
	Method string
	Args   []interface{}
	Value  *big.Int
}

type fakeContract struct {
	abi     abi.ABI
	results map[string][]interface{}
}

// fakeBackend answers eth_call from canned results and mines every sent
// transaction immediately. Unused Backend methods panic through the nil
// embedded interface.
type fakeBackend struct {
	Backend

	mu        sync.Mutex
	contracts map[common.Address]*fakeContract
	sent      []sentCall
	receipts  map[common.Hash]*types.Receipt
	revert    map[string]bool
	onSend    func(call sentCall)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		contracts: make(map[common.Address]*fakeContract),
		receipts:  make(map[common.Hash]*types.Receipt),
		revert:    make(map[string]bool),
	}
}

func (f *fakeBackend) deploy(addr common.Address, abiJSON string) *fakeContract {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(err)
	}
	c := &fakeContract{abi: parsed, results: make(map[string][]interface{})}
	f.mu.Lock()
	f.contracts[addr] = c
	f.mu.Unlock()
	return c
}

func (f *fakeBackend) set(addr common.Address, method string, out ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contracts[addr].results[method] = out
}

func (f *fakeBackend) calls() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCall(nil), f.sent...)
}

func (f *fakeBackend) lookup(to *common.Address, data []byte) (*fakeContract, *abi.Method, error) {
	if to == nil {
		return nil, nil, errors.New("contract creation not supported")
	}
	c, ok := f.contracts[*to]
	if !ok {
		return nil, nil, fmt.Errorf("no contract at %s", to.Hex())
	}
	if len(data) < 4 {
		return nil, nil, errors.New("short calldata")
	}
	m, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	return c, m, nil
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, m, err := f.lookup(call.To, call.Data)
	if err != nil {
		return nil, err
	}
	out, ok := c.results[m.Name]
	if !ok {
		return nil, fmt.Errorf("execution reverted: %s not stubbed", m.Name)
	}
	return m.Outputs.Pack(out...)
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100)}, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 200_000, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	_, m, err := f.lookup(tx.To(), tx.Data())
	if err != nil {
		f.mu.Unlock()
		return err
	}
	args, err := m.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		f.mu.Unlock()
		return err
	}
	call := sentCall{To: *tx.To(), Method: m.Name, Args: args, Value: tx.Value()}
	f.sent = append(f.sent, call)

	status := types.ReceiptStatusSuccessful
	if f.revert[m.Name] {
		status = types.ReceiptStatusFailed
	}
	f.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(int64(100 + len(f.sent))),
	}
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil && status == types.ReceiptStatusSuccessful {
		hook(call)
	}
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[h]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}
