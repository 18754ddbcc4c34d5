package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingIsNotAnError(t *testing.T) {
	t.Parallel()

	_, ok, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want false nil", ok, err)
	}
	_, ok, err = Load("")
	if err != nil || ok {
		t.Fatalf("empty path: ok=%v err=%v", ok, err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := Checkpoint{
		ChainID:          8453,
		User:             "0x00000000000000000000000000000000000000Aa",
		Account:          "0x1000000000000000000000000000000000000004",
		LastCycleID:      "c1",
		LastCycleAt:      at,
		LastCycleOutcome: "rebalanced",
		LastRebalanceAt:  at,
		LastRebalanceTxs: []string{"0x01", "0x02", "0x03"},
		TargetAssets:     []string{"0xa", "0xb"},
		TargetShares:     []int64{1_000_000, 0},
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	got, ok, err := Load(path)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.LastCycleID != want.LastCycleID || !got.LastCycleAt.Equal(at) || len(got.LastRebalanceTxs) != 3 || got.TargetShares[0] != 1_000_000 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.Matches(8453, "0x00000000000000000000000000000000000000aa") {
		t.Fatalf("Matches should ignore address case")
	}
	if got.Matches(42161, want.User) {
		t.Fatalf("Matches should compare chain id")
	}
}

func TestLoadCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
