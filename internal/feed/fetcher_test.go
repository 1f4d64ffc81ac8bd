package feed

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/rotisserie/eris"
)

func TestSnapshotFromFeedMapsFields(t *testing.T) {
	t.Parallel()

	published := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	parsed := &gofeed.Feed{
		Title:       "  The Deep Dive  ",
		Description: "A show about everything.",
		Link:        "https://example.com",
		Image:       &gofeed.Image{URL: "https://example.com/cover.png"},
		Items: []*gofeed.Item{
			{
				Title:           "Episode One: Beginnings",
				Description:     "The first one.",
				Link:            "https://example.com/ep1",
				PublishedParsed: &published,
				Enclosures:      []*gofeed.Enclosure{{URL: "https://example.com/ep1.mp3", Type: "audio/mpeg"}},
			},
		},
	}

	snapshot, err := snapshotFromFeed(parsed, "https://example.com/feed.xml", "")
	if err != nil {
		t.Fatalf("snapshotFromFeed returned error: %v", err)
	}

	podcast := snapshot.Podcast
	if podcast.Slug != "the-deep-dive" {
		t.Fatalf("expected slug derived from title, got %q", podcast.Slug)
	}
	if podcast.Title != "The Deep Dive" {
		t.Fatalf("expected trimmed title, got %q", podcast.Title)
	}
	if podcast.RSSURL != "https://example.com/feed.xml" {
		t.Fatalf("expected feed URL recorded, got %q", podcast.RSSURL)
	}
	if podcast.ImageURL != "https://example.com/cover.png" {
		t.Fatalf("expected feed image, got %q", podcast.ImageURL)
	}

	if len(snapshot.Episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(snapshot.Episodes))
	}
	episode := snapshot.Episodes[0]
	if episode.Slug != "episode-one-beginnings" {
		t.Fatalf("expected derived episode slug, got %q", episode.Slug)
	}
	if episode.PodcastSlug != "the-deep-dive" {
		t.Fatalf("expected back-reference to podcast slug, got %q", episode.PodcastSlug)
	}
	if episode.URL != "https://example.com/ep1" {
		t.Fatalf("expected canonical URL from item link, got %q", episode.URL)
	}
	if episode.AudioURL != "https://example.com/ep1.mp3" {
		t.Fatalf("expected audio URL from enclosure, got %q", episode.AudioURL)
	}
	if episode.PubDate == nil || !episode.PubDate.Equal(published) {
		t.Fatalf("expected pub date %v, got %v", published, episode.PubDate)
	}
	if episode.TranscriptURL != "" || episode.SummaryURL != "" {
		t.Fatalf("fetched episodes must have empty processing fields: %#v", episode)
	}
}

func TestSnapshotFromFeedKeepsProvidedSlug(t *testing.T) {
	t.Parallel()

	parsed := &gofeed.Feed{Title: "Renamed Show"}

	snapshot, err := snapshotFromFeed(parsed, "https://example.com/feed.xml", "original-slug")
	if err != nil {
		t.Fatalf("snapshotFromFeed returned error: %v", err)
	}
	if snapshot.Podcast.Slug != "original-slug" {
		t.Fatalf("expected stored slug to be kept, got %q", snapshot.Podcast.Slug)
	}
}

func TestSnapshotFromFeedRequiresTitle(t *testing.T) {
	t.Parallel()

	if _, err := snapshotFromFeed(&gofeed.Feed{}, "https://example.com/feed.xml", ""); !eris.Is(err, ErrNoTitle) {
		t.Fatalf("expected ErrNoTitle, got %v", err)
	}
}

func TestEpisodeFromItemFallbacks(t *testing.T) {
	t.Parallel()

	item := &gofeed.Item{
		Link: "https://example.com/untitled",
		ITunesExt: &ext.ITunesItemExtension{
			Subtitle: "An iTunes subtitle.",
			Image:    "https://example.com/itunes.png",
		},
	}

	episode := episodeFromItem("show", item)
	if episode.Title != "Untitled" {
		t.Fatalf("expected Untitled fallback, got %q", episode.Title)
	}
	if episode.Description != "An iTunes subtitle." {
		t.Fatalf("expected iTunes subtitle fallback, got %q", episode.Description)
	}
	if episode.ImageURL != "https://example.com/itunes.png" {
		t.Fatalf("expected iTunes image fallback, got %q", episode.ImageURL)
	}
}
