// Package state persists the agent's last cycle so a restart can report
// where it left off.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Checkpoint struct {
	ChainID int64  `json:"chain_id"`
	User    string `json:"user"`
	Account string `json:"account,omitempty"`

	LastCycleID      string    `json:"last_cycle_id,omitempty"`
	LastCycleAt      time.Time `json:"last_cycle_at,omitempty"`
	LastCycleOutcome string    `json:"last_cycle_outcome,omitempty"`

	LastRebalanceAt time.Time `json:"last_rebalance_at,omitempty"`
	// Transaction hashes of the last rebalance, in submission order.
	LastRebalanceTxs []string `json:"last_rebalance_txs,omitempty"`

	TargetAssets []string `json:"target_assets,omitempty"`
	TargetShares []int64  `json:"target_shares,omitempty"`
}

// Matches reports whether ckpt was written for the same chain and trader.
func (c Checkpoint) Matches(chainID int64, user string) bool {
	return c.ChainID == chainID && strings.EqualFold(strings.TrimSpace(c.User), strings.TrimSpace(user))
}

func Load(path string) (Checkpoint, bool, error) {
	if path == "" {
		return Checkpoint{}, false, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, err
	}

	var ckpt Checkpoint
	if err := json.Unmarshal(b, &ckpt); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return ckpt, true, nil
}

// Save writes ckpt atomically through a temp file and rename.
func Save(path string, ckpt Checkpoint) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(ckpt, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
