package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAddAndHas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	led, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if led.Has("v1") {
		t.Error("empty ledger should not contain v1")
	}

	err = led.Add("v1", Record{Title: "First Video", Channel: "Test Channel", Provider: "gemini"})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !led.Has("v1") {
		t.Error("expected v1 after add")
	}

	rec, ok := led.Get("v1")
	if !ok || rec.Title != "First Video" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.ProcessedAt == "" {
		t.Error("expected processed_at to be stamped")
	}
}

func TestAddDuplicate(t *testing.T) {
	led, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := led.Add("v1", Record{Title: "First"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	err = led.Add("v1", Record{Title: "Second"})
	if !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord, got %v", err)
	}

	// The original record survives.
	rec, _ := led.Get("v1")
	if rec.Title != "First" {
		t.Errorf("duplicate add must not overwrite, got %q", rec.Title)
	}
}

func TestPersistenceAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	led, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	led.Add("v1", Record{Title: "A"})
	led.Add("v2", Record{Title: "B"})

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.Len() != 2 {
		t.Errorf("expected 2 records after reopen, got %d", reopened.Len())
	}
	if !reopened.Has("v1") || !reopened.Has("v2") {
		t.Error("expected v1 and v2 after reopen")
	}
}

func TestOpenMissingFileIsFresh(t *testing.T) {
	led, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("expected fresh ledger for missing file, got: %v", err)
	}
	if led.Len() != 0 {
		t.Errorf("expected empty ledger, got %d records", led.Len())
	}
}

func TestOpenCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Error("expected error for corrupt ledger file")
	}
}

func TestAllSorted(t *testing.T) {
	led, _ := Open(filepath.Join(t.TempDir(), "state.json"))
	led.Add("vb", Record{})
	led.Add("va", Record{})

	ids := led.All()
	if len(ids) != 2 || ids[0] != "va" || ids[1] != "vb" {
		t.Errorf("expected sorted ids, got %v", ids)
	}
}
