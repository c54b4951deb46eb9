// Package transcript persists fetched transcripts and their cleaned
// text as flat files under the data directory.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tubescribe/internal/store"
	"tubescribe/internal/youtube"
)

// Document is the raw transcript of one video plus the metadata needed
// to rebuild an article from it later.
type Document struct {
	VideoID     string            `json:"video_id"`
	Title       string            `json:"title"`
	Channel     string            `json:"channel"`
	PublishedAt string            `json:"published_at"`
	Duration    int               `json:"duration"`
	Thumbnail   string            `json:"thumbnail"`
	Language    string            `json:"language"`
	FetchedAt   string            `json:"fetched_at"`
	Segments    []youtube.Segment `json:"segments"`
}

// Text renders the document as timestamped lines, one per segment.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, seg := range d.Segments {
		fmt.Fprintf(&sb, "[%.1f] %s\n", seg.Start, seg.Text)
	}
	return sb.String()
}

// Store reads and writes transcript files under a single directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// SaveDocument writes the raw transcript JSON, stamping fetched_at if
// the caller left it empty.
func (s *Store) SaveDocument(doc *Document) error {
	if doc.FetchedAt == "" {
		doc.FetchedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return store.WriteJSON(filepath.Join(s.dir, doc.VideoID+".json"), doc)
}

// LoadDocument reads a previously saved transcript.
func (s *Store) LoadDocument(videoID string) (*Document, error) {
	var doc Document
	if err := store.ReadJSON(filepath.Join(s.dir, videoID+".json"), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// HasDocument reports whether a raw transcript exists for the video.
func (s *Store) HasDocument(videoID string) bool {
	_, err := os.Stat(filepath.Join(s.dir, videoID+".json"))
	return err == nil
}

// SaveCleaned writes the normalized transcript text.
func (s *Store) SaveCleaned(videoID, text string) error {
	return store.WriteBytes(filepath.Join(s.dir, videoID+"_cleaned.txt"), []byte(text))
}

// LoadCleaned reads the normalized transcript text.
func (s *Store) LoadCleaned(videoID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, videoID+"_cleaned.txt"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveDescription writes the video description alongside the transcript.
func (s *Store) SaveDescription(videoID, description string) error {
	return store.WriteBytes(filepath.Join(s.dir, videoID+"_description.txt"), []byte(description))
}

// LoadDescription reads the saved description, or "" when none exists.
func (s *Store) LoadDescription(videoID string) string {
	data, err := os.ReadFile(filepath.Join(s.dir, videoID+"_description.txt"))
	if err != nil {
		return ""
	}
	return string(data)
}
