package article

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "summaries"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestWriteAndRead(t *testing.T) {
	s := newTestStore(t)
	fm := FrontMatter{
		Title:       "Deep Dive",
		VideoID:     "abc12345678",
		Channel:     "Example",
		PublishedAt: "2026-08-28T10:00:00Z",
		Thumbnail:   "http://img/m.jpg",
		Provider:    "gemini",
		Model:       "gemini-2.5-flash",
	}
	if err := s.Write(fm, "# Deep Dive\n\nThe article body."); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Read("abc12345678")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Title != "Deep Dive" || got.Channel != "Example" {
		t.Errorf("front matter = %+v", got.FrontMatter)
	}
	if got.YouTubeURL != "https://www.youtube.com/watch?v=abc12345678" {
		t.Errorf("youtube_url = %q", got.YouTubeURL)
	}
	if got.SummarizedAt == "" {
		t.Error("summarized_at not stamped")
	}
	if got.Body != "# Deep Dive\n\nThe article body." {
		t.Errorf("body = %q", got.Body)
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	s := newTestStore(t)
	fm := FrontMatter{Title: "First", VideoID: "abc12345678"}
	if err := s.Write(fm, "first body"); err != nil {
		t.Fatal(err)
	}

	err := s.Write(FrontMatter{Title: "Second", VideoID: "abc12345678"}, "second body")
	if !errors.Is(err, ErrExists) {
		t.Fatalf("err = %v, want ErrExists", err)
	}

	got, err := s.Read("abc12345678")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "First" || got.Body != "first body" {
		t.Errorf("original article was modified: %+v", got)
	}
}

func TestWriteRequiresVideoID(t *testing.T) {
	s := newTestStore(t)
	if err := s.Write(FrontMatter{Title: "No ID"}, "body"); err == nil {
		t.Error("expected error without video id")
	}
}

func TestListSortsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	for _, v := range []struct{ id, published string }{
		{"video0000001", "2026-08-01T00:00:00Z"},
		{"video0000003", "2026-08-20T00:00:00Z"},
		{"video0000002", "2026-08-10T00:00:00Z"},
	} {
		fm := FrontMatter{Title: v.id, VideoID: v.id, PublishedAt: v.published}
		if err := s.Write(fm, "body of "+v.id); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	want := []string{"video0000003", "video0000002", "video0000001"}
	for i, a := range got {
		if a.VideoID != want[i] {
			t.Errorf("position %d = %s, want %s", i, a.VideoID, want[i])
		}
	}
}

func TestListSkipsNonMarkdown(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(filepath.Join(s.dir, "notes.txt"), []byte("not an article"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestParseRejectsMissingFrontMatter(t *testing.T) {
	if _, err := parse([]byte("just markdown, no header")); err == nil {
		t.Error("expected error")
	}
	if _, err := parse([]byte("---\ntitle: x\nnever closed")); err == nil {
		t.Error("expected error for unterminated header")
	}
}

func TestWrittenFileShape(t *testing.T) {
	s := newTestStore(t)
	fm := FrontMatter{Title: "Shape", VideoID: "abc12345678"}
	if err := s.Write(fm, "body"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, "abc12345678.md"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "---\n") {
		t.Errorf("file does not start with front matter fence: %q", text[:20])
	}
	if !strings.Contains(text, "\n---\n\nbody\n") {
		t.Errorf("file shape unexpected:\n%s", text)
	}
}
