package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestNilWriterDiscards(t *testing.T) {
	t.Parallel()

	w := New("  ", Rotation{})
	if w != nil {
		t.Fatalf("expected nil writer for blank path")
	}
	if err := w.Write(map[string]int{"a": 1}); err != nil {
		t.Fatalf("nil Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestConcurrentWritesStayLineDelimited(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	w := New(path, Rotation{})
	defer w.Close()

	type rec struct {
		Worker int `json:"worker"`
		Seq    int `json:"seq"`
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := w.Write(rec{Worker: worker, Seq: j}); err != nil {
					t.Errorf("Write: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r rec
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %d not JSON: %q", lines, sc.Text())
		}
		lines++
	}
	if lines != 400 {
		t.Fatalf("got %d lines, want 400", lines)
	}
}

func TestWriteRejectsNil(t *testing.T) {
	t.Parallel()

	w := New(filepath.Join(t.TempDir(), "e.jsonl"), Rotation{})
	defer w.Close()
	if err := w.Write(nil); err == nil {
		t.Fatalf("expected error for nil record")
	}
}
