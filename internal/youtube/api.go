// Package youtube talks to YouTube: video metadata via the Data API and
// caption transcripts via the public watch page.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dataAPIBaseURL = "https://www.googleapis.com/youtube/v3/videos"

// VideoInfo holds the metadata needed to queue and publish a video.
type VideoInfo struct {
	VideoID         string
	Title           string
	Description     string
	Channel         string
	PublishedAt     string // RFC3339
	Thumbnail       string
	DurationSeconds int
}

// Client fetches video metadata from the YouTube Data API.
type Client struct {
	apiKey  string
	client  *http.Client
	baseURL string
}

// NewClient creates a Data API client reading its key from the given
// environment variable.
func NewClient(apiKeyEnv string) *Client {
	return &Client{
		apiKey:  os.Getenv(apiKeyEnv),
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: dataAPIBaseURL,
	}
}

// IsConfigured returns whether the API key is available.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// VideoInfo fetches snippet and contentDetails for a single video.
func (c *Client) VideoInfo(ctx context.Context, videoID string) (*VideoInfo, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("youtube data api key not set")
	}

	params := url.Values{
		"part": {"snippet,contentDetails"},
		"id":   {videoID},
		"key":  {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("videos.list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("videos.list HTTP %d", resp.StatusCode)
	}

	var result struct {
		Items []struct {
			Snippet struct {
				Title        string `json:"title"`
				Description  string `json:"description"`
				ChannelTitle string `json:"channelTitle"`
				PublishedAt  string `json:"publishedAt"`
				Thumbnails   map[string]struct {
					URL string `json:"url"`
				} `json:"thumbnails"`
			} `json:"snippet"`
			ContentDetails struct {
				Duration string `json:"duration"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode videos.list: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("video %s not found", videoID)
	}

	item := result.Items[0]
	seconds, err := ParseDuration(item.ContentDetails.Duration)
	if err != nil {
		return nil, fmt.Errorf("duration %q: %w", item.ContentDetails.Duration, err)
	}

	return &VideoInfo{
		VideoID:         videoID,
		Title:           strings.TrimSpace(item.Snippet.Title),
		Description:     item.Snippet.Description,
		Channel:         item.Snippet.ChannelTitle,
		PublishedAt:     item.Snippet.PublishedAt,
		Thumbnail:       bestThumbnail(item.Snippet.Thumbnails),
		DurationSeconds: seconds,
	}, nil
}

// thumbnail sizes in descending order of preference
var thumbnailOrder = []string{"maxres", "standard", "high", "medium", "default"}

func bestThumbnail(thumbs map[string]struct {
	URL string `json:"url"`
}) string {
	for _, size := range thumbnailOrder {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

var durationRE = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?$`)

// ParseDuration converts an ISO-8601 duration like "PT1H2M3S" to seconds.
func ParseDuration(iso string) (int, error) {
	if iso == "" {
		return 0, nil
	}
	m := durationRE.FindStringSubmatch(iso)
	if m == nil {
		return 0, fmt.Errorf("unsupported ISO-8601 duration")
	}
	total := 0.0
	if m[1] != "" {
		h, _ := strconv.Atoi(m[1])
		total += float64(h) * 3600
	}
	if m[2] != "" {
		min, _ := strconv.Atoi(m[2])
		total += float64(min) * 60
	}
	if m[3] != "" {
		s, _ := strconv.ParseFloat(m[3], 64)
		total += s
	}
	return int(total), nil
}

var videoIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID pulls the 11-character video id out of a YouTube URL.
// A bare id is returned as-is.
func ExtractVideoID(s string) string {
	s = strings.TrimSpace(s)
	if videoIDRE.MatchString(s) {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("v"); videoIDRE.MatchString(id) {
		return id
	}
	// youtu.be/<id>, youtube.com/shorts/<id>, youtube.com/live/<id>
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 {
		if id := parts[len(parts)-1]; videoIDRE.MatchString(id) {
			return id
		}
	}
	return ""
}
