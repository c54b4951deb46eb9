package transcript

import (
	"path/filepath"
	"strings"
	"testing"

	"tubescribe/internal/store"
	"tubescribe/internal/youtube"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "transcripts"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func sampleDoc() *Document {
	return &Document{
		VideoID:     "abc12345678",
		Title:       "A Video",
		Channel:     "Example",
		PublishedAt: "2026-08-28T10:00:00Z",
		Duration:    1205,
		Language:    "en",
		Segments: []youtube.Segment{
			{Start: 0.5, Duration: 2.1, Text: "hello there"},
			{Start: 2.6, Duration: 1.9, Text: "welcome back"},
		},
	}
}

func TestSaveAndLoadDocument(t *testing.T) {
	s := newTestStore(t)
	doc := sampleDoc()
	if err := s.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if doc.FetchedAt == "" {
		t.Error("expected fetched_at to be stamped")
	}

	got, err := s.LoadDocument("abc12345678")
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if got.Title != "A Video" || len(got.Segments) != 2 {
		t.Errorf("loaded %+v", got)
	}
	if got.Segments[1].Text != "welcome back" {
		t.Errorf("segment order lost: %+v", got.Segments)
	}
}

func TestLoadMissingDocument(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadDocument("nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if !store.IsNotExist(err) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

func TestHasDocument(t *testing.T) {
	s := newTestStore(t)
	if s.HasDocument("abc12345678") {
		t.Error("HasDocument true before save")
	}
	if err := s.SaveDocument(sampleDoc()); err != nil {
		t.Fatal(err)
	}
	if !s.HasDocument("abc12345678") {
		t.Error("HasDocument false after save")
	}
}

func TestDocumentText(t *testing.T) {
	doc := sampleDoc()
	text := doc.Text()
	if !strings.Contains(text, "[0.5] hello there") {
		t.Errorf("Text() = %q", text)
	}
	if !strings.Contains(text, "[2.6] welcome back") {
		t.Errorf("Text() = %q", text)
	}
}

func TestCleanedAndDescriptionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveCleaned("abc12345678", "clean text"); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadCleaned("abc12345678")
	if err != nil || got != "clean text" {
		t.Errorf("LoadCleaned = %q, %v", got, err)
	}

	if err := s.SaveDescription("abc12345678", "a description"); err != nil {
		t.Fatal(err)
	}
	if got := s.LoadDescription("abc12345678"); got != "a description" {
		t.Errorf("LoadDescription = %q", got)
	}
	if got := s.LoadDescription("missing"); got != "" {
		t.Errorf("LoadDescription(missing) = %q", got)
	}
}
