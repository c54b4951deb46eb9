// Package discover finds new candidate videos on registered channels via
// their public RSS feeds, so routine polling costs no API quota.
package discover

import (
	"log"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"tubescribe/internal/config"
)

const feedURLPrefix = "https://www.youtube.com/feeds/videos.xml?channel_id="

// Candidate is a video found on a channel feed, not yet admitted to the
// backlog.
type Candidate struct {
	VideoID      string
	Title        string
	ChannelID    string
	ChannelTitle string
	PublishedAt  string // RFC3339
	Lang         string
}

// Discoverer fetches candidate videos from channel feeds.
type Discoverer struct {
	channels []config.Channel
	parser   *gofeed.Parser
}

// New creates a Discoverer for the configured channels.
func New(channels []config.Channel) *Discoverer {
	return &Discoverer{channels: channels, parser: gofeed.NewParser()}
}

// FetchAll collects candidates from every channel published within the
// last daysWindow days. Per-feed failures are logged and skipped; the
// result is finite and deduplicated by video id.
func (d *Discoverer) FetchAll(daysWindow int) []Candidate {
	cutoff := time.Now().AddDate(0, 0, -daysWindow)

	var all []Candidate
	seen := make(map[string]struct{})
	for _, ch := range d.channels {
		feed, err := d.parser.ParseURL(feedURLPrefix + ch.ChannelID)
		if err != nil {
			log.Printf("Failed to parse feed for channel %s (%s): %v", ch.Name, ch.ChannelID, err)
			continue
		}

		entries := candidatesFromFeed(feed, ch, cutoff)
		fresh := 0
		for _, c := range entries {
			if _, dup := seen[c.VideoID]; dup {
				continue
			}
			seen[c.VideoID] = struct{}{}
			all = append(all, c)
			fresh++
		}
		log.Printf("Checked %s: %d videos within %d days", ch.Name, fresh, daysWindow)
	}

	return all
}

func candidatesFromFeed(feed *gofeed.Feed, ch config.Channel, cutoff time.Time) []Candidate {
	var out []Candidate
	for _, item := range feed.Items {
		c := candidateFromItem(item, ch)
		if c == nil {
			continue
		}
		if isWithinWindow(item.PublishedParsed, cutoff) {
			out = append(out, *c)
		}
	}
	return out
}

func candidateFromItem(item *gofeed.Item, ch config.Channel) *Candidate {
	videoID := extractVideoID(item)
	if videoID == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var published string
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC().Format(time.RFC3339)
	}

	name := ch.Name
	if name == "" {
		name = feedChannelTitle(item, ch.ChannelID)
	}

	return &Candidate{
		VideoID:      videoID,
		Title:        title,
		ChannelID:    ch.ChannelID,
		ChannelTitle: name,
		PublishedAt:  published,
		Lang:         ch.Lang,
	}
}

// extractVideoID reads the yt:videoId extension, falling back to the
// "yt:video:<id>" GUID form.
func extractVideoID(item *gofeed.Item) string {
	if ext, ok := item.Extensions["yt"]["videoId"]; ok && len(ext) > 0 {
		return strings.TrimSpace(ext[0].Value)
	}
	if idx := strings.LastIndex(item.GUID, ":"); idx >= 0 {
		return strings.TrimSpace(item.GUID[idx+1:])
	}
	return strings.TrimSpace(item.GUID)
}

func feedChannelTitle(item *gofeed.Item, fallback string) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	return fallback
}

func isWithinWindow(published *time.Time, cutoff time.Time) bool {
	if published == nil {
		return true // benefit of the doubt
	}
	return !published.Before(cutoff)
}
