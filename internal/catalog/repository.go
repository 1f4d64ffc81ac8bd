package catalog

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/fixie-ai/podverse/internal/store"
)

const podcastKeyPrefix = "podcast:"

// Repository persists Podcast and Episode records in a key-value store.
// Podcasts live under `podcast:<slug>`, episodes under
// `podcast:<slug>:<episodeSlug>`, so both sets enumerate via prefix scans.
//
// The store has no optimistic-concurrency guard: two concurrent writers
// against the same podcast race with last-write-wins semantics. Callers
// needing stronger consistency must serialize externally.
type Repository struct {
	kv     store.KV
	logger *logrus.Logger
}

// NewRepository constructs a Repository over the provided KV store.
func NewRepository(kv store.KV, logger *logrus.Logger) (*Repository, error) {
	if kv == nil {
		return nil, eris.New("kv store is required")
	}

	return &Repository{kv: kv, logger: logger}, nil
}

func podcastKey(slug string) string {
	return podcastKeyPrefix + slug
}

func episodeKey(podcastSlug, episodeSlug string) string {
	return podcastKeyPrefix + podcastSlug + ":" + episodeSlug
}

// GetPodcast returns the stored podcast for slug.
func (r *Repository) GetPodcast(ctx context.Context, slug string) (*Podcast, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return nil, eris.New("podcast slug is required")
	}

	value, err := r.kv.Get(ctx, podcastKey(trimmed))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(store.ErrNotFound, "podcast: %s", trimmed)
		}
		r.logError(logrus.Fields{"podcast": trimmed}, err, "fetching podcast")
		return nil, eris.Wrapf(err, "fetching podcast: %s", trimmed)
	}

	var podcast Podcast
	if err := json.Unmarshal(value, &podcast); err != nil {
		r.logError(logrus.Fields{"podcast": trimmed}, err, "decoding podcast record")
		return nil, eris.Wrapf(err, "decoding podcast record: %s", trimmed)
	}

	return &podcast, nil
}

// SetPodcast upserts the full podcast record.
func (r *Repository) SetPodcast(ctx context.Context, podcast *Podcast) error {
	if podcast == nil {
		return eris.New("podcast is nil")
	}
	if strings.TrimSpace(podcast.Slug) == "" {
		return eris.New("podcast slug is required")
	}

	value, err := json.Marshal(podcast)
	if err != nil {
		return eris.Wrapf(err, "encoding podcast record: %s", podcast.Slug)
	}

	if err := r.kv.Set(ctx, podcastKey(podcast.Slug), value); err != nil {
		r.logError(logrus.Fields{"podcast": podcast.Slug}, err, "saving podcast")
		return eris.Wrapf(err, "saving podcast: %s", podcast.Slug)
	}

	return nil
}

// GetEpisode returns the stored episode for the (podcastSlug, episodeSlug)
// pair.
func (r *Repository) GetEpisode(ctx context.Context, podcastSlug, episodeSlug string) (*Episode, error) {
	if strings.TrimSpace(podcastSlug) == "" || strings.TrimSpace(episodeSlug) == "" {
		return nil, eris.New("podcast and episode slugs are required")
	}

	key := episodeKey(podcastSlug, episodeSlug)
	value, err := r.kv.Get(ctx, key)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(store.ErrNotFound, "episode: %s:%s", podcastSlug, episodeSlug)
		}
		r.logError(logrus.Fields{"podcast": podcastSlug, "episode": episodeSlug}, err, "fetching episode")
		return nil, eris.Wrapf(err, "fetching episode: %s", key)
	}

	var episode Episode
	if err := json.Unmarshal(value, &episode); err != nil {
		r.logError(logrus.Fields{"podcast": podcastSlug, "episode": episodeSlug}, err, "decoding episode record")
		return nil, eris.Wrapf(err, "decoding episode record: %s", key)
	}

	return &episode, nil
}

// SetEpisode upserts the full episode record under its parent podcast.
func (r *Repository) SetEpisode(ctx context.Context, episode *Episode) error {
	if episode == nil {
		return eris.New("episode is nil")
	}
	if strings.TrimSpace(episode.PodcastSlug) == "" || strings.TrimSpace(episode.Slug) == "" {
		return eris.New("episode podcast and slug are required")
	}

	value, err := json.Marshal(episode)
	if err != nil {
		return eris.Wrapf(err, "encoding episode record: %s:%s", episode.PodcastSlug, episode.Slug)
	}

	key := episodeKey(episode.PodcastSlug, episode.Slug)
	if err := r.kv.Set(ctx, key, value); err != nil {
		r.logError(logrus.Fields{"podcast": episode.PodcastSlug, "episode": episode.Slug}, err, "saving episode")
		return eris.Wrapf(err, "saving episode: %s", key)
	}

	return nil
}

// ListPodcasts returns the slugs of all stored podcasts.
func (r *Repository) ListPodcasts(ctx context.Context) ([]string, error) {
	keys, err := r.scanAll(ctx, podcastKeyPrefix+"*")
	if err != nil {
		r.logError(nil, err, "listing podcasts")
		return nil, eris.Wrap(err, "listing podcasts")
	}

	slugs := make([]string, 0, len(keys))
	for _, key := range keys {
		slug := strings.TrimPrefix(key, podcastKeyPrefix)
		// Episode keys match the same prefix; skip anything below the
		// podcast level.
		if strings.Contains(slug, ":") {
			continue
		}
		slugs = append(slugs, slug)
	}

	sort.Strings(slugs)
	return slugs, nil
}

// ListEpisodes returns the slugs of all episodes owned by the podcast.
func (r *Repository) ListEpisodes(ctx context.Context, podcastSlug string) ([]string, error) {
	trimmed := strings.TrimSpace(podcastSlug)
	if trimmed == "" {
		return nil, eris.New("podcast slug is required")
	}

	prefix := podcastKeyPrefix + trimmed + ":"
	keys, err := r.scanAll(ctx, prefix+"*")
	if err != nil {
		r.logError(logrus.Fields{"podcast": trimmed}, err, "listing episodes")
		return nil, eris.Wrapf(err, "listing episodes: %s", trimmed)
	}

	slugs := make([]string, 0, len(keys))
	for _, key := range keys {
		slugs = append(slugs, strings.TrimPrefix(key, prefix))
	}

	sort.Strings(slugs)
	return slugs, nil
}

// LoadPodcast returns the podcast together with all of its episode records,
// newest first. Episodes without a publish date sort last.
func (r *Repository) LoadPodcast(ctx context.Context, slug string) (*Podcast, []Episode, error) {
	podcast, err := r.GetPodcast(ctx, slug)
	if err != nil {
		return nil, nil, err
	}

	episodeSlugs, err := r.ListEpisodes(ctx, podcast.Slug)
	if err != nil {
		return nil, nil, err
	}

	episodes := make([]Episode, 0, len(episodeSlugs))
	for _, episodeSlug := range episodeSlugs {
		episode, err := r.GetEpisode(ctx, podcast.Slug, episodeSlug)
		if err != nil {
			return nil, nil, err
		}
		episodes = append(episodes, *episode)
	}

	sort.SliceStable(episodes, func(i, j int) bool {
		a, b := episodes[i].PubDate, episodes[j].PubDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	return podcast, episodes, nil
}

// DeletePodcast removes the podcast and cascades to all of its episode
// records. Deletion is not transactional: a failure part-way leaves the
// remaining records in place and is surfaced to the caller with the failing
// key, rather than silently retried.
func (r *Repository) DeletePodcast(ctx context.Context, slug string) error {
	podcast, err := r.GetPodcast(ctx, slug)
	if err != nil {
		return err
	}

	episodeSlugs, err := r.ListEpisodes(ctx, podcast.Slug)
	if err != nil {
		return err
	}

	for _, episodeSlug := range episodeSlugs {
		key := episodeKey(podcast.Slug, episodeSlug)
		if err := r.kv.Delete(ctx, key); err != nil {
			r.logError(logrus.Fields{"podcast": podcast.Slug, "episode": episodeSlug}, err, "cascading episode delete")
			return eris.Wrapf(err, "partial cascade: deleting episode %s", key)
		}
	}

	if err := r.kv.Delete(ctx, podcastKey(podcast.Slug)); err != nil {
		r.logError(logrus.Fields{"podcast": podcast.Slug}, err, "deleting podcast")
		return eris.Wrapf(err, "partial cascade: episodes removed, deleting podcast %s", podcast.Slug)
	}

	return nil
}

// scanAll drives the backend's cursor-paged scan to completion, so callers
// never see pagination.
func (r *Repository) scanAll(ctx context.Context, match string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		page, next, err := r.kv.ScanKeys(ctx, match, cursor)
		if err != nil {
			return nil, err
		}
		keys = append(keys, page...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (r *Repository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil || err == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
