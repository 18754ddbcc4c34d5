// Package network loads the per-chain WedX deployment document
// (network_data_v1.json): the group contract address, the wrapped native
// token and optionally the contract ABIs.
package network

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/serpius-project/wedx-go/internal/chain"
	"github.com/serpius-project/wedx-go/internal/ethutil"
)

const DefaultPath = "network_data/network_data_v1.json"

var ErrChainMissing = errors.New("network data has no entry for chain")

type entry struct {
	Group      string   `json:"contractWEDXGroup"`
	Wrap       string   `json:"wrap_address"`
	GroupABI   abiField `json:"abiWEDXGroup"`
	DeployABI  abiField `json:"abiWEDXDeployerPro"`
	ProABI     abiField `json:"abiWEDXPro"`
	ManagerABI abiField `json:"abiWEDXManager"`
}

// File is a parsed deployment document keyed by chain name.
type File struct {
	entries map[string]entry
}

// Deployment is everything the agent needs to reach the WedX contracts on a
// single chain. Empty ABI strings mean the caller should use its built-ins.
type Deployment struct {
	Chain         chain.Info
	Group         common.Address
	NativeWrapper common.Address

	GroupABI     string
	DeployerABI  string
	PortfolioABI string
	ManagerABI   string
}

func Load(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network data: %w", err)
	}
	f, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse network data %s: %w", path, err)
	}
	return f, nil
}

func Parse(b []byte) (*File, error) {
	var entries map[string]entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, err
	}
	return &File{entries: entries}, nil
}

// Chains returns the chain names present in the document.
func (f *File) Chains() []string {
	out := make([]string, 0, len(f.entries))
	for name := range f.entries {
		out = append(out, name)
	}
	return out
}

func (f *File) For(info chain.Info) (Deployment, error) {
	if f == nil {
		return Deployment{}, fmt.Errorf("network data nil")
	}
	e, ok := f.entries[info.Name]
	if !ok {
		return Deployment{}, fmt.Errorf("%w %s", ErrChainMissing, info.Name)
	}

	group, err := ethutil.ParseAddress("contractWEDXGroup", e.Group)
	if err != nil {
		return Deployment{}, fmt.Errorf("%s: %w", info.Name, err)
	}
	wrap, err := ethutil.ParseAddress("wrap_address", e.Wrap)
	if err != nil {
		return Deployment{}, fmt.Errorf("%s: %w", info.Name, err)
	}

	return Deployment{
		Chain:         info,
		Group:         group,
		NativeWrapper: wrap,
		GroupABI:      string(e.GroupABI),
		DeployerABI:   string(e.DeployABI),
		PortfolioABI:  string(e.ProABI),
		ManagerABI:    string(e.ManagerABI),
	}, nil
}


// abiField holds an ABI as raw JSON. The document stores ABIs either inline
// as an array or as a string containing the array.
type abiField string

func (a *abiField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw != "" && !json.Valid([]byte(raw)) {
			return fmt.Errorf("abi string is not valid JSON")
		}
		*a = abiField(raw)
		return nil
	}
	if b[0] != '[' {
		return fmt.Errorf("abi must be an array or a string, got %q", b[:1])
	}
	*a = abiField(b)
	return nil
}
