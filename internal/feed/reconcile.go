package feed

import (
	"github.com/sirupsen/logrus"

	"github.com/fixie-ai/podverse/internal/catalog"
)

// Reconcile merges a freshly fetched snapshot against previously stored
// state. Episode identity across refreshes is the canonical URL, not the
// derived slug: a matched episode keeps its stored record in its entirety so
// computed artifacts (transcript, summary, suggested queries) survive, at the
// cost of not picking up upstream metadata edits. Unmatched episodes enter
// carrying feed-derived fields only.
//
// With overwrite set the fetched snapshot replaces stored state wholesale and
// processing fields reset, except CorpusID: that is assigned by the external
// index service and can never come from a feed, so it always carries forward.
func Reconcile(logger *logrus.Logger, stored *Snapshot, fetched Snapshot, overwrite bool) Snapshot {
	warnDuplicateSlugs(logger, fetched)

	if stored == nil {
		return fetched
	}

	merged := fetched
	merged.Podcast.Slug = stored.Podcast.Slug
	if stored.Podcast.CorpusID != "" {
		merged.Podcast.CorpusID = stored.Podcast.CorpusID
	}

	if overwrite {
		return merged
	}

	if len(stored.Podcast.SuggestedQueries) > 0 {
		merged.Podcast.SuggestedQueries = stored.Podcast.SuggestedQueries
	}

	byURL := make(map[string]catalog.Episode, len(stored.Episodes))
	for _, episode := range stored.Episodes {
		if episode.URL != "" {
			byURL[episode.URL] = episode
		}
	}

	merged.Episodes = make([]catalog.Episode, 0, len(fetched.Episodes))
	for _, episode := range fetched.Episodes {
		if previous, ok := byURL[episode.URL]; ok && episode.URL != "" {
			merged.Episodes = append(merged.Episodes, previous)
			continue
		}
		merged.Episodes = append(merged.Episodes, episode)
	}

	return merged
}

// warnDuplicateSlugs flags colliding derived slugs within a single snapshot.
// Two distinct entries mapping to one slug share a record key and the last
// writer wins; there is no defined disambiguation for this case.
func warnDuplicateSlugs(logger *logrus.Logger, snapshot Snapshot) {
	if logger == nil {
		return
	}

	seen := make(map[string]string, len(snapshot.Episodes))
	for _, episode := range snapshot.Episodes {
		if previousURL, ok := seen[episode.Slug]; ok {
			logger.WithFields(logrus.Fields{
				"podcast": snapshot.Podcast.Slug,
				"slug":    episode.Slug,
				"urls":    []string{previousURL, episode.URL},
			}).Warn("duplicate episode slug within one feed snapshot")
			continue
		}
		seen[episode.Slug] = episode.URL
	}
}
