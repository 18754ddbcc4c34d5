// Package wedx binds the WedX group, deployer, portfolio and manager
// contracts. Each contract type exposes one method per on-chain function;
// writes block until the transaction is mined.
package wedx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "wedx")

// Backend is what the bindings need from a node connection. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

const DefaultReceiptTimeout = 3 * time.Minute

// RevertError reports a mined transaction whose receipt status is failed.
type RevertError struct {
	Contract string
	Method   string
	TxHash   common.Hash
	Block    uint64
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("%s.%s reverted tx=%s block=%d", e.Contract, e.Method, e.TxHash.Hex(), e.Block)
}

type contract struct {
	name    string
	address common.Address
	abi     abi.ABI
	backend Backend
	bound   *bind.BoundContract

	receiptTimeout time.Duration
}

func newContract(name string, address common.Address, parsed abi.ABI, backend Backend) *contract {
	return &contract{
		name:           name,
		address:        address,
		abi:            parsed,
		backend:        backend,
		bound:          bind.NewBoundContract(address, parsed, backend, backend, backend),
		receiptTimeout: DefaultReceiptTimeout,
	}
}

func (c *contract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s pack: %w", c.name, method, err)
	}
	msg := ethereum.CallMsg{To: &c.address, Data: data}
	out, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.name, method, err)
	}
	vals, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%s.%s unpack: %w", c.name, method, err)
	}
	return vals, nil
}

func (c *contract) transact(ctx context.Context, opts *bind.TransactOpts, method string, args ...interface{}) (*types.Receipt, error) {
	if opts == nil {
		return nil, fmt.Errorf("%s.%s: %w", c.name, method, ErrReadOnly)
	}
	o := *opts
	o.Context = ctx

	tx, err := c.bound.Transact(&o, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.name, method, err)
	}
	log.WithFields(logrus.Fields{"contract": c.name, "method": method, "tx": tx.Hash().Hex()}).Info("sent tx")

	receipt, err := waitForReceipt(ctx, c.backend, tx, c.receiptTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s.%s wait receipt tx=%s: %w", c.name, method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, &RevertError{Contract: c.name, Method: method, TxHash: tx.Hash(), Block: blockNumber(receipt)}
	}
	return receipt, nil
}

func waitForReceipt(ctx context.Context, backend bind.DeployBackend, tx *types.Transaction, timeout time.Duration) (*types.Receipt, error) {
	waitCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return bind.WaitMined(waitCtx, backend, tx)
}

func blockNumber(r *types.Receipt) uint64 {
	if r == nil || r.BlockNumber == nil || !r.BlockNumber.IsUint64() {
		return 0
	}
	return r.BlockNumber.Uint64()
}

func single(vals []interface{}, method string) (interface{}, error) {
	if len(vals) != 1 {
		return nil, fmt.Errorf("%s: unexpected result len %d", method, len(vals))
	}
	return vals[0], nil
}

func toAddress(vals []interface{}, method string) (common.Address, error) {
	v, err := single(vals, method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected type %T", method, v)
	}
	return addr, nil
}

func toAddressSlice(vals []interface{}, method string) ([]common.Address, error) {
	v, err := single(vals, method)
	if err != nil {
		return nil, err
	}
	out, ok := v.([]common.Address)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", method, v)
	}
	return out, nil
}

func int64FromBigSaturating(x *big.Int) int64 {
	// Contract integers are uint256/int256; values the agent works with are
	// far below 2^63, but never wrap if a contract returns something larger.
	if x == nil {
		return 0
	}
	if x.IsInt64() {
		return x.Int64()
	}
	if x.Sign() < 0 {
		return math.MinInt64
	}
	return math.MaxInt64
}

var errNotInteger = errors.New("not an integer value")

func toInt64(v interface{}) (int64, error) {
	if b, ok := v.(*big.Int); ok {
		return int64FromBigSaturating(b), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return math.MaxInt64, nil
		}
		return int64(u), nil
	}
	return 0, fmt.Errorf("%w: %T", errNotInteger, v)
}

func toInt64Slice(v interface{}) ([]int64, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected integer array, got %T", v)
	}
	out := make([]int64, rv.Len())
	for i := range out {
		n, err := toInt64(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

var bigIntType = reflect.TypeOf((*big.Int)(nil))

// intArrayArg converts vals into the Go type abi.Pack expects for the array
// argument t, so deployments may declare uint256[] or a narrower integer.
func intArrayArg(t abi.Type, vals []int64) (interface{}, error) {
	if (t.T != abi.SliceTy && t.T != abi.ArrayTy) || t.Elem == nil {
		return nil, fmt.Errorf("expected integer array argument, got %s", t.String())
	}
	if t.T == abi.ArrayTy && t.Size != len(vals) {
		return nil, fmt.Errorf("fixed array %s needs %d values, got %d", t.String(), t.Size, len(vals))
	}
	elem := t.Elem.GetType()
	out := reflect.MakeSlice(reflect.SliceOf(elem), len(vals), len(vals))
	for i, v := range vals {
		if v < 0 && t.Elem.T == abi.UintTy {
			return nil, fmt.Errorf("negative value %d at index %d for %s", v, i, t.String())
		}
		rv := reflect.New(elem).Elem()
		switch {
		case elem == bigIntType:
			rv.Set(reflect.ValueOf(big.NewInt(v)))
		case elem.Kind() >= reflect.Int && elem.Kind() <= reflect.Int64:
			if rv.OverflowInt(v) {
				return nil, fmt.Errorf("value %d overflows %s", v, t.Elem.String())
			}
			rv.SetInt(v)
		case elem.Kind() >= reflect.Uint && elem.Kind() <= reflect.Uint64:
			if rv.OverflowUint(uint64(v)) {
				return nil, fmt.Errorf("value %d overflows %s", v, t.Elem.String())
			}
			rv.SetUint(uint64(v))
		default:
			return nil, fmt.Errorf("unsupported element type %s", t.Elem.String())
		}
		out.Index(i).Set(rv)
	}
	if t.T == abi.ArrayTy {
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, out)
		return arr.Interface(), nil
	}
	return out.Interface(), nil
}

func methodInput(parsed abi.ABI, method string, idx int) (abi.Type, error) {
	m, ok := parsed.Methods[method]
	if !ok {
		return abi.Type{}, fmt.Errorf("abi missing method %s", method)
	}
	if idx >= len(m.Inputs) {
		return abi.Type{}, fmt.Errorf("%s has %d inputs, want index %d", method, len(m.Inputs), idx)
	}
	return m.Inputs[idx].Type, nil
}
