// Package chain describes the networks the agent can operate on and how to
// reach them over JSON-RPC.
package chain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type ID int64

const (
	Base     ID = 8453
	Arbitrum ID = 42161
)

var ErrUnsupportedChain = errors.New("unsupported chain")

// Info is the static description of a supported chain. Name doubles as the
// key used by the deployment and market data documents.
type Info struct {
	ID         ID
	Name       string
	RPCEnv     string
	DefaultRPC string
}

var known = map[ID]Info{
	Base: {
		ID:         Base,
		Name:       "base",
		RPCEnv:     "RPC_BASE",
		DefaultRPC: "https://mainnet.base.org",
	},
	Arbitrum: {
		ID:         Arbitrum,
		Name:       "arbitrum",
		RPCEnv:     "RPC_ARBITRUM",
		DefaultRPC: "https://arbitrum.llamarpc.com",
	},
}

func Lookup(id ID) (Info, error) {
	info, ok := known[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %d", ErrUnsupportedChain, id)
	}
	return info, nil
}

// ParseID accepts a numeric chain id ("8453") or a chain name ("base").
func ParseID(raw string) (ID, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, fmt.Errorf("%w: empty chain", ErrUnsupportedChain)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if _, err := Lookup(ID(n)); err != nil {
			return 0, err
		}
		return ID(n), nil
	}
	for id, info := range known {
		if info.Name == raw {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedChain, raw)
}

// Supported lists the known chains ordered by id.
func Supported() []Info {
	out := make([]Info, 0, len(known))
	for _, info := range known {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (id ID) String() string {
	if info, ok := known[id]; ok {
		return info.Name
	}
	return strconv.FormatInt(int64(id), 10)
}
