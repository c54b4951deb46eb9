package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	if err := WriteJSON(path, payload{Name: "queue", Count: 3}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var got payload
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Name != "queue" || got.Count != 3 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	if err := WriteJSON(path, payload{Name: "a"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := WriteJSON(path, payload{Name: "b"}); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tubescribe-tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestReadJSONMissingFile(t *testing.T) {
	err := ReadJSON(filepath.Join(t.TempDir(), "nope.json"), &payload{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !IsNotExist(err) {
		t.Errorf("expected IsNotExist to be true, got: %v", err)
	}
}

func TestReadJSONCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	err := ReadJSON(path, &payload{})
	if err == nil {
		t.Fatal("expected error for corrupt file")
	}
	if IsNotExist(err) {
		t.Error("corrupt file must not look like a missing file")
	}
}

func TestLockConflict(t *testing.T) {
	lockDir := filepath.Join(t.TempDir(), "data.lock")

	l1, err := Acquire(lockDir, time.Hour)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := Acquire(lockDir, time.Hour); err == nil {
		t.Fatal("expected second acquire to fail while held")
	}

	if err := l1.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	l2, err := Acquire(lockDir, time.Hour)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	l2.Release()
}

func TestLockStaleTakeover(t *testing.T) {
	lockDir := filepath.Join(t.TempDir(), "data.lock")

	l1, err := Acquire(lockDir, time.Hour)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	_ = l1 // abandoned without release, as after a crash

	// With a zero staleness window the abandoned lock is broken.
	l2, err := Acquire(lockDir, 0)
	if err != nil {
		t.Fatalf("expected stale lock takeover, got: %v", err)
	}
	l2.Release()
}

func TestReleaseTwice(t *testing.T) {
	lockDir := filepath.Join(t.TempDir(), "data.lock")
	l, err := Acquire(lockDir, time.Hour)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second release failed: %v", err)
	}
}
