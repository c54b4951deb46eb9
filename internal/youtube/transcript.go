package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoTranscript means the video has no usable caption track.
var ErrNoTranscript = errors.New("no transcript available")

// Segment is one caption line with its timing.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// Transcript is an ordered list of caption segments in one language.
type Transcript struct {
	Language string
	Segments []Segment
}

// TranscriptClient fetches caption transcripts by scraping the public
// watch page, which needs no API key and costs no quota.
type TranscriptClient struct {
	client    *http.Client
	watchBase string
	langs     []string
}

// NewTranscriptClient creates a transcript fetcher preferring the given
// language codes in order.
func NewTranscriptClient(langs []string) *TranscriptClient {
	return &TranscriptClient{
		client:    &http.Client{Timeout: 60 * time.Second},
		watchBase: "https://www.youtube.com/watch",
		langs:     langs,
	}
}

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Fetch downloads the best caption track for a video.
// Returns ErrNoTranscript when captions are disabled or every track is
// browser-only.
func (t *TranscriptClient) Fetch(ctx context.Context, videoID string) (*Transcript, error) {
	tracks, err := t.captionTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}
	track, ok := pickBestTrack(tracks, t.langs)
	if !ok {
		return nil, fmt.Errorf("%w: all caption tracks are browser-only", ErrNoTranscript)
	}

	segments, err := t.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: caption track is empty", ErrNoTranscript)
	}
	return &Transcript{Language: track.LanguageCode, Segments: segments}, nil
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

const playerResponseMarker = "ytInitialPlayerResponse = "

// captionTracks scrapes the watch page and extracts the caption track
// list from the embedded ytInitialPlayerResponse JSON.
func (t *TranscriptClient) captionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", t.watchBase+"?v="+videoID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}

	idx := strings.Index(string(body), playerResponseMarker)
	if idx < 0 {
		return nil, fmt.Errorf("%w: player response not found in watch page", ErrNoTranscript)
	}
	jsonData := extractJSON(body[idx+len(playerResponseMarker):])
	if jsonData == nil {
		return nil, fmt.Errorf("malformed player response for %s", videoID)
	}

	var pr playerResponse
	if err := json.Unmarshal(jsonData, &pr); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	if pr.Captions == nil {
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoTranscript, pr.PlayabilityStatus.Reason)
		}
		return nil, ErrNoTranscript
	}
	tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, ErrNoTranscript
	}
	return tracks, nil
}

// Tracks with &exp=xpe require a PoToken and cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack prefers manual over auto-generated tracks in the given
// language order, falling back to any English track, then any track.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, tr := range tracks {
		if !needsPoToken(tr.BaseURL) {
			usable = append(usable, tr)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	for _, lang := range langs {
		for _, tr := range usable {
			if tr.LanguageCode == lang && tr.Kind != "asr" {
				return tr, true
			}
		}
	}
	for _, lang := range langs {
		for _, tr := range usable {
			if tr.LanguageCode == lang {
				return tr, true
			}
		}
	}
	for _, tr := range usable {
		if strings.HasPrefix(tr.LanguageCode, "en") {
			return tr, true
		}
	}
	return usable[0], true
}

type timedText struct {
	Lines []timedLine `xml:"text"`
}

type timedLine struct {
	Start float64 `xml:"start,attr"`
	Dur   float64 `xml:"dur,attr"`
	Text  string  `xml:",chardata"`
}

func (t *TranscriptClient) fetchTimedText(ctx context.Context, baseURL string) ([]Segment, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", baseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timedtext HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, err
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	segments := make([]Segment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := strings.TrimSpace(html.UnescapeString(line.Text))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Start: line.Start, Duration: line.Dur, Text: text})
	}
	return segments, nil
}

// extractJSON returns the balanced JSON object at the start of b.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	var prev byte
	for i, c := range b {
		if inStr {
			if c == '"' && prev != '\\' {
				inStr = false
			}
		} else {
			switch c {
			case '"':
				inStr = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return b[:i+1]
				}
			}
		}
		prev = c
	}
	return nil
}
