package feed

import (
	"context"
	"strings"

	"github.com/gosimple/slug"
	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/fixie-ai/podverse/internal/catalog"
)

// ErrNoTitle indicates the fetched feed carries no usable title.
var ErrNoTitle = eris.New("feed has no title")

const untitledEpisode = "Untitled"

// Snapshot is one fetched or stored view of a podcast and its episodes.
type Snapshot struct {
	Podcast  catalog.Podcast
	Episodes []catalog.Episode
}

// Fetcher reads a feed URL and converts it into a candidate Snapshot.
type Fetcher struct {
	parser *gofeed.Parser
	logger *logrus.Logger
}

// NewFetcher constructs a feed Fetcher.
func NewFetcher(logger *logrus.Logger) *Fetcher {
	return &Fetcher{parser: gofeed.NewParser(), logger: logger}
}

// Fetch downloads and parses the feed at feedURL. When podcastSlug is empty a
// slug is derived from the feed title; refresh flows pass the stored slug so
// it is never recomputed.
func (f *Fetcher) Fetch(ctx context.Context, feedURL, podcastSlug string) (*Snapshot, error) {
	parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "parsing feed: %s", feedURL)
	}

	snapshot, err := snapshotFromFeed(parsed, feedURL, podcastSlug)
	if err != nil {
		return nil, err
	}

	if f.logger != nil {
		f.logger.WithFields(logrus.Fields{
			"podcast":  snapshot.Podcast.Slug,
			"episodes": len(snapshot.Episodes),
		}).Debug("fetched feed")
	}

	return snapshot, nil
}

func snapshotFromFeed(parsed *gofeed.Feed, feedURL, podcastSlug string) (*Snapshot, error) {
	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		return nil, eris.Wrapf(ErrNoTitle, "feed: %s", feedURL)
	}

	if podcastSlug == "" {
		podcastSlug = slug.Make(title)
	}

	podcast := catalog.Podcast{
		Slug:        podcastSlug,
		Title:       title,
		Description: strings.TrimSpace(parsed.Description),
		Link:        parsed.Link,
		RSSURL:      feedURL,
		ImageURL:    feedImageURL(parsed),
	}

	episodes := make([]catalog.Episode, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		episodes = append(episodes, episodeFromItem(podcastSlug, item))
	}

	return &Snapshot{Podcast: podcast, Episodes: episodes}, nil
}

func episodeFromItem(podcastSlug string, item *gofeed.Item) catalog.Episode {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = untitledEpisode
	}

	description := strings.TrimSpace(item.Description)
	if description == "" && item.ITunesExt != nil {
		description = strings.TrimSpace(item.ITunesExt.Subtitle)
	}

	episode := catalog.Episode{
		Slug:        slug.Make(title),
		PodcastSlug: podcastSlug,
		Title:       title,
		Description: description,
		URL:         item.Link,
		PubDate:     item.PublishedParsed,
	}

	if item.Image != nil {
		episode.ImageURL = item.Image.URL
	} else if item.ITunesExt != nil {
		episode.ImageURL = item.ITunesExt.Image
	}

	for _, enclosure := range item.Enclosures {
		if enclosure != nil && enclosure.URL != "" {
			episode.AudioURL = enclosure.URL
			break
		}
	}

	return episode
}

func feedImageURL(parsed *gofeed.Feed) string {
	if parsed.Image != nil && parsed.Image.URL != "" {
		return parsed.Image.URL
	}
	if parsed.ITunesExt != nil {
		return parsed.ITunesExt.Image
	}
	return ""
}
