package wedx

import (
	"context"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
)

// Manager is the asset manager that scores and ranks traders.
type Manager struct{ c *contract }

func NewManager(address common.Address, abiJSON string, backend Backend) (*Manager, error) {
	parsed, err := parseABI("manager", abiJSON, managerABIJSON)
	if err != nil {
		return nil, err
	}
	if err := requireMethods("manager", parsed, "getTraderScore", "getTraderData", "getNPoints"); err != nil {
		return nil, err
	}
	return &Manager{c: newContract("manager", address, parsed, backend)}, nil
}

func (m *Manager) TraderScore(ctx context.Context, user common.Address) (*big.Int, error) {
	vals, err := m.c.call(ctx, "getTraderScore", user)
	if err != nil {
		return nil, err
	}
	v, err := single(vals, "getTraderScore")
	if err != nil {
		return nil, err
	}
	if b, ok := v.(*big.Int); ok {
		return b, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, fmt.Errorf("getTraderScore: %w", err)
	}
	return big.NewInt(n), nil
}

// TraderInteractions returns how many scoring points the trader has
// accumulated: the length of the fourth field of getTraderData.
func (m *Manager) TraderInteractions(ctx context.Context, user common.Address) (int, error) {
	vals, err := m.c.call(ctx, "getTraderData", user)
	if err != nil {
		return 0, err
	}
	n, err := interactionCount(vals)
	if err != nil {
		return 0, fmt.Errorf("getTraderData: %w", err)
	}
	return n, nil
}

// RequiredInteractions is the number of points needed before rankMe.
func (m *Manager) RequiredInteractions(ctx context.Context) (int64, error) {
	vals, err := m.c.call(ctx, "getNPoints")
	if err != nil {
		return 0, err
	}
	v, err := single(vals, "getNPoints")
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

// interactionCount accepts getTraderData declared either with flat outputs
// or as a single struct output.
func interactionCount(vals []interface{}) (int, error) {
	var field interface{}
	switch {
	case len(vals) >= 4:
		field = vals[3]
	case len(vals) == 1:
		rv := reflect.Indirect(reflect.ValueOf(vals[0]))
		if rv.Kind() == reflect.Struct && rv.NumField() >= 4 {
			field = rv.Field(3).Interface()
		}
	}
	if field == nil {
		return 0, fmt.Errorf("unexpected trader data shape (%d values)", len(vals))
	}
	rv := reflect.ValueOf(field)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, fmt.Errorf("trader data field 3 is %T, want array", field)
	}
	return rv.Len(), nil
}
