package discover

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"tubescribe/internal/config"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015"
      xmlns:media="http://search.yahoo.com/mrss/"
      xmlns="http://www.w3.org/2005/Atom">
  <title>Example Channel</title>
  <entry>
    <id>yt:video:abc12345678</id>
    <yt:videoId>abc12345678</yt:videoId>
    <yt:channelId>UCexample</yt:channelId>
    <title>A Recent Video</title>
    <author><name>Example Channel</name></author>
    <published>2026-08-28T10:00:00+00:00</published>
  </entry>
  <entry>
    <id>yt:video:old12345678</id>
    <yt:videoId>old12345678</yt:videoId>
    <yt:channelId>UCexample</yt:channelId>
    <title>An Old Video</title>
    <author><name>Example Channel</name></author>
    <published>2026-01-01T10:00:00+00:00</published>
  </entry>
  <entry>
    <id>yt:video:untitled1234</id>
    <yt:videoId>untitled1234</yt:videoId>
    <yt:channelId>UCexample</yt:channelId>
    <title></title>
    <published>2026-08-28T12:00:00+00:00</published>
  </entry>
</feed>`

func parseFixture(t *testing.T) *gofeed.Feed {
	t.Helper()
	feed, err := gofeed.NewParser().ParseString(sampleFeed)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return feed
}

func TestCandidatesFromFeedFiltersWindow(t *testing.T) {
	feed := parseFixture(t)
	ch := config.Channel{ChannelID: "UCexample", Name: "Example", Lang: "en"}
	cutoff := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	got := candidatesFromFeed(feed, ch, cutoff)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	c := got[0]
	if c.VideoID != "abc12345678" {
		t.Errorf("video id = %q", c.VideoID)
	}
	if c.Title != "A Recent Video" {
		t.Errorf("title = %q", c.Title)
	}
	if c.ChannelTitle != "Example" {
		t.Errorf("channel title = %q", c.ChannelTitle)
	}
	if c.Lang != "en" {
		t.Errorf("lang = %q", c.Lang)
	}
	if c.PublishedAt != "2026-08-28T10:00:00Z" {
		t.Errorf("published = %q", c.PublishedAt)
	}
}

func TestCandidatesFromFeedIncludesOldWithWideWindow(t *testing.T) {
	feed := parseFixture(t)
	ch := config.Channel{ChannelID: "UCexample"}
	cutoff := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	got := candidatesFromFeed(feed, ch, cutoff)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
}

func TestCandidateFromItemSkipsUntitled(t *testing.T) {
	feed := parseFixture(t)
	ch := config.Channel{ChannelID: "UCexample"}
	for _, item := range feed.Items {
		c := candidateFromItem(item, ch)
		if c != nil && c.Title == "" {
			t.Errorf("untitled entry %s was not skipped", c.VideoID)
		}
	}
}

func TestExtractVideoIDFallsBackToGUID(t *testing.T) {
	item := &gofeed.Item{GUID: "yt:video:xyz98765432"}
	if got := extractVideoID(item); got != "xyz98765432" {
		t.Errorf("extractVideoID = %q, want xyz98765432", got)
	}
}

func TestChannelNameFallsBackToFeedAuthor(t *testing.T) {
	feed := parseFixture(t)
	ch := config.Channel{ChannelID: "UCexample"} // no display name configured
	c := candidateFromItem(feed.Items[0], ch)
	if c == nil {
		t.Fatal("expected a candidate")
	}
	if c.ChannelTitle != "Example Channel" {
		t.Errorf("channel title = %q, want feed author", c.ChannelTitle)
	}
}
