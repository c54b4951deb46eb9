// Package article writes the published markdown articles with YAML
// front matter, one file per video.
package article

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tubescribe/internal/store"
)

// ErrExists means an article for the video is already published.
// Published articles are never overwritten.
var ErrExists = errors.New("article already exists")

// FrontMatter is the YAML header of a published article.
type FrontMatter struct {
	Title        string `yaml:"title"`
	VideoID      string `yaml:"video_id"`
	Channel      string `yaml:"channel"`
	PublishedAt  string `yaml:"published_at"`
	YouTubeURL   string `yaml:"youtube_url"`
	Thumbnail    string `yaml:"thumbnail,omitempty"`
	SummarizedAt string `yaml:"summarized_at"`
	Provider     string `yaml:"provider,omitempty"`
	Model        string `yaml:"model,omitempty"`
}

// Article is a published markdown file.
type Article struct {
	FrontMatter
	Body string
}

// Store reads and writes article files under a single directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create article dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(videoID string) string {
	return filepath.Join(s.dir, videoID+".md")
}

// Has reports whether an article exists for the video.
func (s *Store) Has(videoID string) bool {
	_, err := os.Stat(s.path(videoID))
	return err == nil
}

// Write publishes an article, stamping summarized_at if empty.
// Returns ErrExists when the video already has one.
func (s *Store) Write(fm FrontMatter, body string) error {
	if fm.VideoID == "" {
		return fmt.Errorf("article front matter missing video id")
	}
	if s.Has(fm.VideoID) {
		return fmt.Errorf("%w: %s", ErrExists, fm.VideoID)
	}
	if fm.SummarizedAt == "" {
		fm.SummarizedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if fm.YouTubeURL == "" {
		fm.YouTubeURL = "https://www.youtube.com/watch?v=" + fm.VideoID
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshal front matter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(header)
	sb.WriteString("---\n\n")
	sb.WriteString(strings.TrimSpace(body))
	sb.WriteString("\n")

	return store.WriteBytes(s.path(fm.VideoID), []byte(sb.String()))
}

// Read loads a published article.
func (s *Store) Read(videoID string) (*Article, error) {
	data, err := os.ReadFile(s.path(videoID))
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// List loads every published article, most recently published video first.
func (s *Store) List() ([]*Article, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read article dir: %w", err)
	}

	var articles []*Article
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		a, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("article %s: %w", e.Name(), err)
		}
		articles = append(articles, a)
	}

	// RFC3339 strings sort chronologically
	sort.Slice(articles, func(i, j int) bool {
		return articles[i].PublishedAt > articles[j].PublishedAt
	})
	return articles, nil
}

func parse(data []byte) (*Article, error) {
	text := string(data)
	if !strings.HasPrefix(text, "---\n") {
		return nil, fmt.Errorf("missing front matter")
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, fmt.Errorf("unterminated front matter")
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}

	body := rest[end+len("\n---"):]
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	}
	return &Article{FrontMatter: fm, Body: strings.TrimSpace(body)}, nil
}
