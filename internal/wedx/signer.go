package wedx

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/serpius-project/wedx-go/internal/chain"
)

var ErrReadOnly = errors.New("no signer configured")

// Signer holds the trader key for a single chain.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

func NewSigner(pkHex string, id chain.ID) (*Signer, error) {
	pkHex = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(pkHex), "0x"))
	if pkHex == "" {
		return nil, fmt.Errorf("private key missing")
	}
	pk, err := crypto.HexToECDSA(pkHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Signer{
		key:     pk,
		address: crypto.PubkeyToAddress(pk.PublicKey),
		chainID: big.NewInt(int64(id)),
	}, nil
}

func (s *Signer) Address() common.Address { return s.address }

// TransactOpts returns fresh options for one transaction. Gas and fees are
// left to the node's suggestions.
func (s *Signer) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if s == nil {
		return nil, ErrReadOnly
	}
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}
